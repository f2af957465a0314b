package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// missingSentinel is the literal the station API uses for absent samples.
const missingSentinel = "NA"

// StationQuery is the request body of the historic station-data endpoint.
type StationQuery struct {
	Stations    []string  `json:"stations" validate:"required,min=1,dive,required"`
	DateFrom    time.Time `json:"-" validate:"required"`
	DateTo      time.Time `json:"-" validate:"required,gtefield=DateFrom"`
	Variables   []string  `json:"variables" validate:"required,min=1,dive,required"`
	Frequencies string    `json:"frequencies" validate:"required"`
	Format      string    `json:"format" validate:"required"`
}

// MarshalJSON renders the dates the way the station API expects them.
func (q StationQuery) MarshalJSON() ([]byte, error) {
	type wire struct {
		Stations    []string `json:"stations"`
		DateFrom    string   `json:"datefrom"`
		DateTo      string   `json:"dateto"`
		Variables   []string `json:"variables"`
		Frequencies string   `json:"frequencies"`
		Format      string   `json:"format"`
	}
	return json.Marshal(wire{
		Stations:    q.Stations,
		DateFrom:    q.DateFrom.Format(time.DateOnly),
		DateTo:      q.DateTo.Format(time.DateOnly),
		Variables:   q.Variables,
		Frequencies: q.Frequencies,
		Format:      q.Format,
	})
}

// StationResponse is the raw nested payload of a station query:
// one entry per time-block.
type StationResponse []TimeBlock

// TimeBlock groups station series that share one timestamp sequence.
type TimeBlock struct {
	TimeSequence []string        `json:"timeSequence"`
	Dataset      []StationSeries `json:"dataset"`
}

// StationSeries holds the samples of one variable at one station.
// Values are aligned with the enclosing block's TimeSequence.
type StationSeries struct {
	StationID  FlexString `json:"stationID"`
	X          FlexString `json:"X"`
	Y          FlexString `json:"Y"`
	UtcOffset  FlexString `json:"UtcOffset"`
	VariableID FlexString `json:"variableID"`
	Values     []RawValue `json:"values"`
}

// Validate checks the structural invariants of the payload. It does not
// inspect individual sample values.
func (r StationResponse) Validate() error {
	for i, block := range r {
		if block.TimeSequence == nil {
			return fmt.Errorf("%w: time-block %d has no timeSequence", ErrUpstreamData, i)
		}
		if block.Dataset == nil {
			return fmt.Errorf("%w: time-block %d has no dataset", ErrUpstreamData, i)
		}
		for j, series := range block.Dataset {
			if series.StationID == "" {
				return fmt.Errorf("%w: time-block %d entry %d has no stationID", ErrUpstreamData, i, j)
			}
			if series.VariableID == "" {
				return fmt.Errorf("%w: time-block %d entry %d has no variableID", ErrUpstreamData, i, j)
			}
			if len(series.Values) != len(block.TimeSequence) {
				return fmt.Errorf("%w: station %s variable %s has %d values for %d timestamps",
					ErrShapeMismatch, series.StationID, series.VariableID, len(series.Values), len(block.TimeSequence))
			}
		}
	}
	return nil
}

// SeriesCount returns the number of series entries across all time-blocks.
func (r StationResponse) SeriesCount() int {
	n := 0
	for _, block := range r {
		n += len(block.Dataset)
	}
	return n
}

// FlexString decodes either a JSON string or a JSON number and keeps the
// textual form. The station API is not consistent about which it sends.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: expected string or number, got %s", ErrUpstreamData, data)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

type rawKind uint8

const (
	rawNull rawKind = iota
	rawNumber
	rawString
)

// RawValue is one entry of a series' values array: a number, a string
// (possibly the "NA" sentinel) or null.
type RawValue struct {
	kind rawKind
	num  float64
	str  string
}

// NumberValue returns a numeric RawValue.
func NumberValue(v float64) RawValue { return RawValue{kind: rawNumber, num: v} }

// StringValue returns a textual RawValue.
func StringValue(s string) RawValue { return RawValue{kind: rawString, str: s} }

// NullValue returns a null RawValue.
func NullValue() RawValue { return RawValue{} }

// NAValue returns the missing-sample sentinel.
func NAValue() RawValue { return StringValue(missingSentinel) }

func (v *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = NullValue()
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("%w: unexpected value %s", ErrUpstreamData, data)
		}
		*v = NumberValue(f)
	}
	return nil
}

func (v RawValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case rawNumber:
		return json.Marshal(v.num)
	case rawString:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

// GobEncode lets raw responses be checkpointed like any other value.
func (v RawValue) GobEncode() ([]byte, error) {
	return v.MarshalJSON()
}

func (v *RawValue) GobDecode(data []byte) error {
	return v.UnmarshalJSON(data)
}

// IsSentinel reports whether the value is the literal "NA".
func (v RawValue) IsSentinel() bool {
	return v.kind == rawString && v.str == missingSentinel
}

// IsNull reports whether the value is JSON null.
func (v RawValue) IsNull() bool {
	return v.kind == rawNull
}

// Float converts the value to float64. Numeric strings are accepted.
func (v RawValue) Float() (float64, error) {
	switch v.kind {
	case rawNumber:
		return v.num, nil
	case rawString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: value %q is not numeric", ErrParse, v.str)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: null value", ErrParse)
	}
}

// NullFloat is a float64 cell that may be missing.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Float returns a valid cell, or a missing one when v is NaN.
func Float(v float64) NullFloat {
	if math.IsNaN(v) {
		return NullFloat{}
	}
	return NullFloat{Float64: v, Valid: true}
}

// OrNaN returns the value, or NaN when missing.
func (n NullFloat) OrNaN() float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = NullFloat{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = NullFloat{Float64: f, Valid: true}
	return nil
}
