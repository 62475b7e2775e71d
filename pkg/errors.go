package pkg

import "fmt"

// FetchError reports that the statistics API could not be read: a transport
// failure, a non-2xx status or a body that is not a JSON array of objects.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MissingFieldError reports a raw record without one of the projected fields.
// A JSON null counts as missing.
type MissingFieldError struct {
	Index int
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("record %d: missing field %q", e.Index, e.Field)
}

// FieldTypeError reports a projected field whose value has the wrong type,
// for example a non-integral number in a count column.
type FieldTypeError struct {
	Index int
	Field string
	Value interface{}
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("record %d: field %q has unexpected value %v (%T)", e.Index, e.Field, e.Value, e.Value)
}

// LoadError reports a failed load. Op is one of connect, begin, insert or
// commit; Row is the zero-based row index for insert failures and -1 otherwise.
type LoadError struct {
	Op  string
	Row int
	Err error
}

func (e *LoadError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("load: %s row %d: %v", e.Op, e.Row, e.Err)
	}
	return fmt.Sprintf("load: %s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
