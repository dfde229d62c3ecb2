package features

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hoopstats/propcast/internal/models"
)

// gameNamespace seeds deterministic record IDs
var gameNamespace = uuid.MustParse("6f1c2a52-4d0b-4b8e-9a63-0c5e2b7d1f44")

// upstream date layouts, most common first
var dateLayouts = []string{
	"Jan 02, 2006",
	"2006-01-02",
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// Options controls annotation.
type Options struct {
	Cutoffs       map[models.Category]float64
	RollingWindow int
}

// DefaultOptions returns the default cutoffs and a window of 5.
func DefaultOptions() Options {
	return Options{Cutoffs: DefaultCutoffs(), RollingWindow: DefaultRollingWindow}
}

// Annotated is one athlete's processed frame.
type Annotated struct {
	Records  []models.GameRecord
	Warnings []string
}

// ParseGameDate parses the provider's GAME_DATE formats.
func ParseGameDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized game date %q", s)
}

// RecordID derives a stable ID from the athlete and the game.
func RecordID(athleteID int64, athlete string, date time.Time, matchup string) string {
	key := strconv.FormatInt(athleteID, 10) + "|" + athlete + "|" + date.Format(models.GameDateForm) + "|" + matchup
	return uuid.NewMD5(gameNamespace, []byte(key)).String()
}

// Annotate converts raw rows into GameRecords: athlete identity, home/away and own team
// from the matchup, raw stats, threshold labels and rolling averages.
// Malformed rows are dropped with a warning. A stat column absent for the whole athlete
// drops that label with a warning; it never fails the athlete.
func Annotate(athlete models.Athlete, rows []models.RawRow, opts Options) Annotated {
	if opts.Cutoffs == nil {
		opts.Cutoffs = DefaultCutoffs()
	}
	if opts.RollingWindow <= 0 {
		opts.RollingWindow = DefaultRollingWindow
	}

	var out Annotated
	for i, row := range rows {
		rec, err := buildRecord(athlete, row)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: row %d skipped: %v", athlete.Name, i, err))
			continue
		}
		out.Records = append(out.Records, rec)
	}

	models.SortChronological(out.Records)

	for _, c := range ApplyLabels(out.Records, opts.Cutoffs) {
		if len(out.Records) == 0 {
			break
		}
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("%s: column %s missing, %s skipped", athlete.Name, c.Column(), c.LabelColumn()))
	}
	ApplyRolling(out.Records, opts.RollingWindow)

	return out
}

func buildRecord(athlete models.Athlete, row models.RawRow) (models.GameRecord, error) {
	dateCell, ok := row[models.ColGameDate]
	if !ok || !dateCell.Valid() {
		return models.GameRecord{}, fmt.Errorf("missing %s", models.ColGameDate)
	}
	date, err := ParseGameDate(dateCell.String())
	if err != nil {
		return models.GameRecord{}, err
	}

	matchupCell, ok := row[models.ColMatchup]
	if !ok || !matchupCell.Valid() {
		return models.GameRecord{}, fmt.Errorf("missing %s", models.ColMatchup)
	}
	matchup := strings.TrimSpace(matchupCell.String())
	m, err := ParseMatchup(matchup)
	if err != nil {
		return models.GameRecord{}, err
	}

	rec := models.GameRecord{
		AthleteID: athlete.ID,
		Athlete:   athlete.Name,
		Team:      m.Team,
		Opponent:  m.Opponent,
		Matchup:   matchup,
		Home:      m.Home,
		GameDate:  date,
		Stats:     make(map[string]float64),
	}

	for _, col := range models.CountingColumns {
		v, ok := row[col].Float()
		if !ok {
			continue
		}
		if v < 0 {
			return models.GameRecord{}, fmt.Errorf("negative %s: %v", col, v)
		}
		rec.Stats[col] = v
	}
	for _, col := range models.AuxiliaryColumns {
		if v, ok := row[col].Float(); ok {
			rec.Stats[col] = v
		}
	}

	rec.ID = RecordID(athlete.ID, athlete.Name, date, matchup)
	return rec, nil
}
