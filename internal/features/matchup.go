package features

import (
	"fmt"
	"strings"
)

// Matchup is a parsed matchup descriptor such as "LAL vs. BOS" or "LAL @ BOS".
type Matchup struct {
	Team     string
	Opponent string
	Home     bool
}

// ParseMatchup splits a descriptor into own team, opponent and venue.
// "vs." marks a home game and "@" an away game. Exactly one opponent token must remain.
func ParseMatchup(s string) (Matchup, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return Matchup{}, fmt.Errorf("malformed matchup %q", s)
	}

	m := Matchup{Team: fields[0], Opponent: fields[2]}
	switch strings.ToLower(fields[1]) {
	case "vs.", "vs":
		m.Home = true
	case "@":
		m.Home = false
	default:
		return Matchup{}, fmt.Errorf("malformed matchup %q: unknown venue marker %q", s, fields[1])
	}
	if m.Team == "" || m.Opponent == "" {
		return Matchup{}, fmt.Errorf("malformed matchup %q", s)
	}
	return m, nil
}

// TeamsFromMatchups collects every team token appearing on either side of the descriptors.
func TeamsFromMatchups(matchups []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range matchups {
		m, err := ParseMatchup(raw)
		if err != nil {
			continue
		}
		for _, t := range []string{m.Team, m.Opponent} {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// MatchupContains is a case-insensitive substring match of the opponent identifier.
func MatchupContains(matchup, opponent string) bool {
	if opponent == "" {
		return false
	}
	return strings.Contains(strings.ToLower(matchup), strings.ToLower(opponent))
}
