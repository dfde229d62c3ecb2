// Package dataset reads and writes the tabular season export that hands
// annotated game records from ingestion to training.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hoopstats/propcast/internal/models"
)

var identityColumns = []string{
	models.ColGameID,
	models.ColPlayerID,
	models.ColPlayer,
	models.ColTeam,
	models.ColGameDate,
	models.ColMatchup,
	models.ColOpponent,
	models.ColHomeAway,
}

// Columns returns the export header for the records: identity columns, then every
// raw stat, label and rolling column present on at least one record, in canonical order.
func Columns(records []models.GameRecord) []string {
	stats := make(map[string]bool)
	labels := make(map[string]bool)
	rolling := make(map[string]bool)
	for _, r := range records {
		for k := range r.Stats {
			stats[k] = true
		}
		for k := range r.Labels {
			labels[k] = true
		}
		for k := range r.Rolling {
			rolling[k] = true
		}
	}

	cols := append([]string(nil), identityColumns...)
	for _, c := range models.CountingColumns {
		if stats[c] {
			cols = append(cols, c)
		}
	}
	for _, c := range models.AuxiliaryColumns {
		if stats[c] {
			cols = append(cols, c)
		}
	}
	for _, cat := range models.AllCategories {
		if labels[cat.LabelColumn()] {
			cols = append(cols, cat.LabelColumn())
		}
	}
	for _, cat := range models.AllCategories {
		if rolling[cat.RollingColumn()] {
			cols = append(cols, cat.RollingColumn())
		}
	}
	return cols
}

// Write encodes the dataset as CSV. Missing values are empty cells.
func Write(w io.Writer, ds *models.Dataset) error {
	cols := ds.Columns
	if len(cols) == 0 {
		cols = Columns(ds.Records)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(cols))
	for _, r := range ds.Records {
		for i, col := range cols {
			row[i] = cell(r, col)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing %s row: %w", r.Athlete, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the dataset atomically via a temp file in the same directory.
func WriteFile(path string, ds *models.Dataset) error {
	if len(ds.Records) == 0 {
		return models.ErrNoData
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".dataset-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, ds); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Read decodes a CSV export. PLAYER_NAME, GAME_DATE and MATCHUP are required.
func Read(r io.Reader) (*models.Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty dataset file", models.ErrDatasetInvalid)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	for _, req := range []string{models.ColPlayer, models.ColGameDate, models.ColMatchup} {
		if _, ok := index[req]; !ok {
			return nil, fmt.Errorf("%w: missing column %s", models.ErrDatasetInvalid, req)
		}
	}

	kinds := columnKinds()
	ds := &models.Dataset{Columns: header}
	line := 1
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(header, fields, kinds)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrDatasetInvalid, line, err)
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

// ReadFile opens and decodes a CSV export.
func ReadFile(path string) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

type columnKind int

const (
	kindStat columnKind = iota + 1
	kindLabel
	kindRolling
)

func columnKinds() map[string]columnKind {
	kinds := make(map[string]columnKind)
	for _, c := range models.CountingColumns {
		kinds[c] = kindStat
	}
	for _, c := range models.AuxiliaryColumns {
		kinds[c] = kindStat
	}
	for _, cat := range models.AllCategories {
		kinds[cat.LabelColumn()] = kindLabel
		kinds[cat.RollingColumn()] = kindRolling
	}
	return kinds
}

func cell(r models.GameRecord, col string) string {
	switch col {
	case models.ColGameID:
		return r.ID
	case models.ColPlayerID:
		if r.AthleteID == 0 {
			return ""
		}
		return strconv.FormatInt(r.AthleteID, 10)
	case models.ColPlayer:
		return r.Athlete
	case models.ColTeam:
		return r.Team
	case models.ColGameDate:
		return r.GameDate.Format(models.GameDateForm)
	case models.ColMatchup:
		return r.Matchup
	case models.ColOpponent:
		return r.Opponent
	case models.ColHomeAway:
		return r.HomeAway()
	}
	if v, ok := r.Stats[col]; ok {
		return formatFloat(v)
	}
	if v, ok := r.Labels[col]; ok {
		return strconv.Itoa(v)
	}
	if v, ok := r.Rolling[col]; ok {
		return formatFloat(v)
	}
	return ""
}

// formatFloat uses the shortest representation that parses back to the same value.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseRow(header, fields []string, kinds map[string]columnKind) (models.GameRecord, error) {
	rec := models.GameRecord{
		Stats:   make(map[string]float64),
		Labels:  make(map[string]int),
		Rolling: make(map[string]float64),
	}
	var homeAway string

	for i, col := range header {
		if i >= len(fields) {
			break
		}
		v := strings.TrimSpace(fields[i])
		if v == "" {
			continue
		}

		switch col {
		case models.ColGameID:
			rec.ID = v
		case models.ColPlayerID:
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return rec, fmt.Errorf("%s: %w", col, err)
			}
			rec.AthleteID = id
		case models.ColPlayer:
			rec.Athlete = v
		case models.ColTeam:
			rec.Team = v
		case models.ColGameDate:
			d, err := time.Parse(models.GameDateForm, v)
			if err != nil {
				return rec, fmt.Errorf("%s: %w", col, err)
			}
			rec.GameDate = d
		case models.ColMatchup:
			rec.Matchup = v
		case models.ColOpponent:
			rec.Opponent = v
		case models.ColHomeAway:
			homeAway = v
		default:
			kind, ok := kinds[col]
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return rec, fmt.Errorf("%s: %w", col, err)
			}
			switch kind {
			case kindStat:
				rec.Stats[col] = f
			case kindLabel:
				rec.Labels[col] = int(f)
			case kindRolling:
				rec.Rolling[col] = f
			}
		}
	}

	if rec.Athlete == "" {
		return rec, errors.New("empty " + models.ColPlayer)
	}
	if rec.Matchup == "" {
		return rec, errors.New("empty " + models.ColMatchup)
	}
	if rec.GameDate.IsZero() {
		return rec, errors.New("empty " + models.ColGameDate)
	}

	if homeAway != "" {
		rec.Home = strings.EqualFold(homeAway, "HOME")
	} else {
		rec.Home = strings.Contains(rec.Matchup, "vs")
	}
	if rec.Team == "" || rec.Opponent == "" {
		if f := strings.Fields(rec.Matchup); len(f) == 3 {
			if rec.Team == "" {
				rec.Team = f[0]
			}
			if rec.Opponent == "" {
				rec.Opponent = f[2]
			}
		}
	}
	return rec, nil
}

// FileSink writes datasets to a fixed CSV path.
type FileSink struct {
	Path string
}

// WriteDataset implements the ingestion sink contract.
func (s FileSink) WriteDataset(ctx context.Context, ds *models.Dataset) error {
	return WriteFile(s.Path, ds)
}
