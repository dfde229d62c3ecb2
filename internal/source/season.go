package source

import (
	"fmt"
	"time"
)

// CurrentSeason returns the league season label for t, e.g. "2023-24".
// A new season starts in October.
func CurrentSeason(t time.Time) string {
	start := t.Year()
	if t.Month() < time.October {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}
