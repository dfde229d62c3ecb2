package models

import (
	"fmt"
	"strings"
)

// Category is one tracked statistic.
type Category string

const (
	CategoryPoints   Category = "points"
	CategoryRebounds Category = "rebounds"
	CategoryAssists  Category = "assists"
	CategoryBlocks   Category = "blocks"
	CategorySteals   Category = "steals"
	CategoryThrees   Category = "threes"
)

// Raw box-score columns as reported by the upstream provider
const (
	ColPoints   = "PTS"
	ColRebounds = "REB"
	ColAssists  = "AST"
	ColBlocks   = "BLK"
	ColSteals   = "STL"
	ColThrees   = "FG3M"
)

// categorySpec binds a category to its columns and default cutoff
type categorySpec struct {
	column string
	cutoff float64
}

var categorySpecs = map[Category]categorySpec{
	CategoryPoints:   {column: ColPoints, cutoff: 20},
	CategoryRebounds: {column: ColRebounds, cutoff: 10},
	CategoryAssists:  {column: ColAssists, cutoff: 5},
	CategoryBlocks:   {column: ColBlocks, cutoff: 2},
	CategorySteals:   {column: ColSteals, cutoff: 2},
	CategoryThrees:   {column: ColThrees, cutoff: 3},
}

// AllCategories lists the categories in their canonical order.
var AllCategories = []Category{
	CategoryPoints,
	CategoryRebounds,
	CategoryAssists,
	CategoryBlocks,
	CategorySteals,
	CategoryThrees,
}

// CountingColumns are the raw counting stats that make up model features.
var CountingColumns = []string{ColPoints, ColRebounds, ColAssists, ColBlocks, ColSteals, ColThrees}

// AuxiliaryColumns are carried through ingestion when the provider reports them.
var AuxiliaryColumns = []string{
	"MIN", "FGM", "FGA", "FG_PCT", "FG3A", "FG3_PCT",
	"FTM", "FTA", "FT_PCT", "OREB", "DREB", "TOV", "PF", "PLUS_MINUS",
}

// ParseCategory resolves a category name ("points") or its raw column ("PTS").
// Both spellings map onto the same Category so every caller works off one convention.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "fg3m" || key == "three_pointers" || key == "3pm" {
		return CategoryThrees, nil
	}
	for c, spec := range categorySpecs {
		if key == string(c) || key == strings.ToLower(spec.column) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrValidation, s)
}

// Valid reports whether c is a supported category.
func (c Category) Valid() bool {
	_, ok := categorySpecs[c]
	return ok
}

// Column returns the raw stat column, e.g. "PTS".
func (c Category) Column() string {
	return categorySpecs[c].column
}

// DefaultCutoff is the cutoff used for the ThresholdLabel column.
func (c Category) DefaultCutoff() float64 {
	return categorySpecs[c].cutoff
}

// LabelColumn returns e.g. "POINTS_THRESHOLD".
func (c Category) LabelColumn() string {
	return strings.ToUpper(string(c)) + "_THRESHOLD"
}

// RollingColumn returns e.g. "ROLLING_PTS_AVG".
func (c Category) RollingColumn() string {
	return "ROLLING_" + c.Column() + "_AVG"
}
