package models

import (
	"sort"
	"time"
)

// Identity and descriptive columns of the dataset export
const (
	ColGameID    = "GAME_ID"
	ColPlayerID  = "PLAYER_ID"
	ColGameDate  = "GAME_DATE"
	ColMatchup   = "MATCHUP"
	ColPlayer    = "PLAYER_NAME"
	ColTeam      = "TEAM_NAME"
	ColOpponent  = "OPPONENT"
	ColHomeAway  = "HOME_AWAY"
	GameDateForm = "2006-01-02"
)

// Athlete is an active league player as listed by the upstream roster.
type Athlete struct {
	ID   int64  `json:"id"`
	Name string `json:"full_name"`
	Team string `json:"team,omitempty"`
}

// GameRecord is one athlete's box score for one game
type GameRecord struct {
	ID        string             `json:"game_id"`
	AthleteID int64              `json:"player_id"`
	Athlete   string             `json:"player_name"`
	Team      string             `json:"team_name"`
	Opponent  string             `json:"opponent"`
	Matchup   string             `json:"matchup"`
	Home      bool               `json:"home"`
	GameDate  time.Time          `json:"game_date"`
	Stats     map[string]float64 `json:"stats"`
	Labels    map[string]int     `json:"labels,omitempty"`
	Rolling   map[string]float64 `json:"rolling,omitempty"`
}

// Stat returns the raw column value and whether the provider reported it.
func (r GameRecord) Stat(column string) (float64, bool) {
	v, ok := r.Stats[column]
	return v, ok
}

// CategoryValue returns the raw stat backing a category.
func (r GameRecord) CategoryValue(c Category) (float64, bool) {
	return r.Stat(c.Column())
}

// HomeAway returns "HOME" or "AWAY".
func (r GameRecord) HomeAway() string {
	if r.Home {
		return "HOME"
	}
	return "AWAY"
}

// Dataset is every annotated GameRecord of one season, ordered by athlete then date.
// It is built once by ingestion and never mutated afterwards.
type Dataset struct {
	Season  string       `json:"season"`
	Columns []string     `json:"columns"`
	Records []GameRecord `json:"records"`
}

// HasColumn reports whether the dataset carries the column at all.
func (d *Dataset) HasColumn(col string) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Athletes returns the distinct athletes in first-seen order.
func (d *Dataset) Athletes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.Records {
		if !seen[r.Athlete] {
			seen[r.Athlete] = true
			out = append(out, r.Athlete)
		}
	}
	return out
}

// SortChronological orders records oldest first, keeping the original order on ties.
func SortChronological(records []GameRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].GameDate.Before(records[j].GameDate)
	})
}
