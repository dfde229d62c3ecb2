package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexCell is one cell of an upstream result table. The provider mixes native
// numbers, string-encoded numbers and nulls in the same column; FlexCell keeps
// whichever it got and coerces on read.
type FlexCell struct {
	num   float64
	str   string
	isNum bool
	valid bool
}

// NumberCell builds a numeric cell.
func NumberCell(v float64) FlexCell {
	return FlexCell{num: v, isNum: true, valid: true}
}

// StringCell builds a string cell.
func StringCell(s string) FlexCell {
	return FlexCell{str: s, valid: true}
}

// UnmarshalJSON accepts numbers, strings and null.
func (c *FlexCell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = FlexCell{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("flex cell: %w", err)
		}
		*c = StringCell(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*c = NumberCell(n)
		return nil
	}

	// booleans and anything else survive as their literal text
	*c = StringCell(string(data))
	return nil
}

// MarshalJSON writes the cell back in its original shape.
func (c FlexCell) MarshalJSON() ([]byte, error) {
	switch {
	case !c.valid:
		return []byte("null"), nil
	case c.isNum:
		return json.Marshal(c.num)
	default:
		return json.Marshal(c.str)
	}
}

// Valid reports whether the cell held a non-null value.
func (c FlexCell) Valid() bool { return c.valid }

// Float coerces the cell to a number. Empty strings and nulls are not numbers.
func (c FlexCell) Float() (float64, bool) {
	if !c.valid {
		return 0, false
	}
	if c.isNum {
		return c.num, true
	}
	s := strings.TrimSpace(c.str)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String renders the cell as text; integral numbers drop the decimal point.
func (c FlexCell) String() string {
	if !c.valid {
		return ""
	}
	if c.isNum {
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	}
	return c.str
}

// RawRow is one upstream game-log row keyed by column header.
type RawRow map[string]FlexCell
