package pkg

import (
	"strings"
	"time"

	"github.com/fatih/structs"
)

const DateLayout = "2006-01-02"

// RawCountryRecord is one per-country object as served by the statistics API.
type RawCountryRecord map[string]interface{}

// CountryStatRow is the persisted projection of a RawCountryRecord. Field order
// matches the column order of the target table.
type CountryStatRow struct {
	Country    string    `json:"country" db:"country" structs:"country"`
	Date       time.Time `json:"date" db:"date" structs:"date,omitnested"`
	Cases      int64     `json:"cases" db:"cases" structs:"cases"`
	Deaths     int64     `json:"deaths" db:"deaths" structs:"deaths"`
	Recovered  int64     `json:"recovered" db:"recovered" structs:"recovered"`
	Active     int64     `json:"active" db:"active" structs:"active"`
	Population int64     `json:"population" db:"population" structs:"population"`
}

// Clock returns the current time. Production code passes time.Now.
type Clock func() time.Time

// Columns returns the target column names in insert order.
func (row CountryStatRow) Columns() []string {
	fields := structs.Fields(row)
	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, strings.Split(field.Tag("db"), ",")[0])
	}
	return columns
}

// Values returns the row's values positionally aligned with Columns.
func (row CountryStatRow) Values() []interface{} {
	fields := structs.Fields(row)
	values := make([]interface{}, 0, len(fields))
	for _, field := range fields {
		values = append(values, field.Value())
	}
	return values
}

// Map renders the row for structured logging, with the date as YYYY-MM-DD.
func (row CountryStatRow) Map() map[string]interface{} {
	m := structs.Map(row)
	m["date"] = row.Date.Format(DateLayout)
	return m
}
