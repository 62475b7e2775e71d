package pkg

import (
	"encoding/json"
	"math"
	"time"
)

const (
	FieldCountry    = "country"
	FieldCases      = "cases"
	FieldDeaths     = "deaths"
	FieldRecovered  = "recovered"
	FieldActive     = "active"
	FieldPopulation = "population"
)

// RequiredFields lists the raw fields projected into a CountryStatRow.
var RequiredFields = []string{FieldCountry, FieldCases, FieldDeaths, FieldRecovered, FieldActive, FieldPopulation}

type Transformer struct {
	clock Clock
}

// NewTransformer returns a Transformer stamping rows with the date read from
// clock. A nil clock means time.Now.
func NewTransformer(clock Clock) *Transformer {
	if clock == nil {
		clock = time.Now
	}
	return &Transformer{clock: clock}
}

// RunDate truncates t to midnight of its calendar day in t's location.
func RunDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// Transform projects records into rows in input order. The clock is read once
// so every row of the call carries the same date. The first record missing a
// field or holding a value of the wrong type aborts the whole call.
func (t *Transformer) Transform(records []RawCountryRecord) ([]CountryStatRow, error) {
	date := RunDate(t.clock())
	rows := make([]CountryStatRow, 0, len(records))
	for i, record := range records {
		row, err := project(i, record, date)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func project(index int, record RawCountryRecord, date time.Time) (CountryStatRow, error) {
	for _, field := range RequiredFields {
		if v, ok := record[field]; !ok || v == nil {
			return CountryStatRow{}, &MissingFieldError{Index: index, Field: field}
		}
	}

	country, ok := record[FieldCountry].(string)
	if !ok {
		return CountryStatRow{}, &FieldTypeError{Index: index, Field: FieldCountry, Value: record[FieldCountry]}
	}

	row := CountryStatRow{Country: country, Date: date}
	counts := []struct {
		field string
		dst   *int64
	}{
		{FieldCases, &row.Cases},
		{FieldDeaths, &row.Deaths},
		{FieldRecovered, &row.Recovered},
		{FieldActive, &row.Active},
		{FieldPopulation, &row.Population},
	}
	for _, c := range counts {
		n, ok := toInt64(record[c.field])
		if !ok {
			return CountryStatRow{}, &FieldTypeError{Index: index, Field: c.field, Value: record[c.field]}
		}
		*c.dst = n
	}
	return row, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	case float64:
		return floatToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
