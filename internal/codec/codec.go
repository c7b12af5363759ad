// Package codec converts fixed-schema records to and from single lines of
// comma-delimited text.
package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates fields within a line. Values are never escaped.
const Delimiter = ","

// Field describes one column of a schema.
type Field struct {
	Name     string
	MaxLen   int // in bytes; 0 means unbounded
	Required bool
	Integer  bool
}

// Schema is an ordered list of fields.
type Schema []Field

// EncodingError reports a value that cannot be written without corrupting
// the line format.
type EncodingError struct {
	Field  string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return "encoding record: " + e.Reason
	}
	return fmt.Sprintf("encoding field %s: %s", e.Field, e.Reason)
}

// ParseError reports a line that does not match the schema.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing record %q: %s", e.Line, e.Reason)
}

// Header returns the header line naming every field.
func (s Schema) Header() string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return strings.Join(names, Delimiter)
}

// Join validates values against the schema and joins them into one line
// without a trailing newline.
func (s Schema) Join(values ...string) (string, error) {
	if len(values) != len(s) {
		return "", &EncodingError{Reason: fmt.Sprintf("got %d values for %d fields", len(values), len(s))}
	}
	for i, f := range s {
		if err := f.check(values[i]); err != nil {
			return "", err
		}
	}
	return strings.Join(values, Delimiter), nil
}

func (f Field) check(v string) error {
	switch {
	case f.Required && v == "":
		return &EncodingError{Field: f.Name, Reason: "value is required"}
	case strings.Contains(v, Delimiter):
		return &EncodingError{Field: f.Name, Reason: "value contains the field delimiter"}
	case strings.ContainsAny(v, "\r\n"):
		return &EncodingError{Field: f.Name, Reason: "value contains a line terminator"}
	case f.MaxLen > 0 && len(v) > f.MaxLen:
		return &EncodingError{Field: f.Name, Reason: fmt.Sprintf("value is %d bytes, limit is %d", len(v), f.MaxLen)}
	}
	return nil
}

// Split breaks a line into its field values. Integer fields are checked
// but returned as text; use Int to read them.
func (s Schema) Split(line string) ([]string, error) {
	line = strings.TrimSuffix(line, "\r")
	values := strings.Split(line, Delimiter)
	if len(values) != len(s) {
		return nil, &ParseError{Line: line, Reason: fmt.Sprintf("got %d fields, want %d", len(values), len(s))}
	}
	for i, f := range s {
		if !f.Integer {
			continue
		}
		if !digits(values[i]) {
			return nil, &ParseError{Line: line, Reason: fmt.Sprintf("field %s is not an unsigned integer", f.Name)}
		}
		if _, err := strconv.ParseInt(values[i], 10, 64); err != nil {
			return nil, &ParseError{Line: line, Reason: fmt.Sprintf("field %s is out of range", f.Name)}
		}
	}
	return values, nil
}

// digits reports whether v is a non-empty run of ASCII digits. Signs are
// rejected so a decoded value always re-encodes to the same text.
func digits(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}

// Int parses values[i] as a base-10 integer. Values returned by Split have
// already been checked for every Integer field.
func Int(values []string, i int) int64 {
	n, _ := strconv.ParseInt(values[i], 10, 64)
	return n
}

// Itoa formats an integer field value.
func Itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
