package codec

import (
	"errors"
	"strings"
	"testing"
)

var testSchema = Schema{
	{Name: "id", Integer: true},
	{Name: "name", MaxLen: 5, Required: true},
	{Name: "note", MaxLen: 10},
}

func TestHeader(t *testing.T) {
	if got := testSchema.Header(); got != "id,name,note" {
		t.Errorf("expected header 'id,name,note', got %q", got)
	}
}

func TestJoinAndSplit(t *testing.T) {
	line, err := testSchema.Join("7", "alice", "hi there")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if line != "7,alice,hi there" {
		t.Errorf("unexpected line %q", line)
	}

	values, err := testSchema.Split(line)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if Int(values, 0) != 7 || values[1] != "alice" || values[2] != "hi there" {
		t.Errorf("unexpected values %q", values)
	}
}

func TestSplitEmptyOptionalField(t *testing.T) {
	values, err := testSchema.Split("1,bob,")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if values[2] != "" {
		t.Errorf("expected empty note, got %q", values[2])
	}
}

func TestSplitStripsCarriageReturn(t *testing.T) {
	values, err := testSchema.Split("1,bob,note\r")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if values[2] != "note" {
		t.Errorf("expected 'note', got %q", values[2])
	}
}

func TestJoinRejects(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		field  string
	}{
		{"delimiter", []string{"1", "a,b", ""}, "name"},
		{"newline", []string{"1", "ab", "x\ny"}, "note"},
		{"carriage return", []string{"1", "ab", "x\r"}, "note"},
		{"too long", []string{"1", "abcdef", ""}, "name"},
		{"required", []string{"1", "", ""}, "name"},
		{"count", []string{"1", "ab"}, ""},
	}

	for _, tt := range tests {
		_, err := testSchema.Join(tt.values...)
		var encErr *EncodingError
		if !errors.As(err, &encErr) {
			t.Errorf("%s: expected EncodingError, got %v", tt.name, err)
			continue
		}
		if encErr.Field != tt.field {
			t.Errorf("%s: expected field %q, got %q", tt.name, tt.field, encErr.Field)
		}
	}
}

func TestJoinLengthIsInBytes(t *testing.T) {
	// "ščž" is three runes but six bytes.
	if _, err := testSchema.Join("1", "ščž", ""); err == nil {
		t.Error("expected error for multi-byte value over the byte limit")
	}
}

func TestSplitRejects(t *testing.T) {
	tests := []string{
		"1,alice",
		"1,alice,note,extra",
		"x,alice,note",
		"+5,alice,note",
		"-5,alice,note",
		" 5,alice,note",
		"99999999999999999999,alice,note",
		",alice,note",
		"",
	}

	for _, line := range tests {
		_, err := testSchema.Split(line)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("Split(%q): expected ParseError, got %v", line, err)
		}
	}
}

func TestRoundTripAtLimits(t *testing.T) {
	values := []string{"-3", strings.Repeat("a", 5), strings.Repeat("n", 10)}
	line, err := testSchema.Join(values...)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	got, err := testSchema.Split(line)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("field %d: expected %q, got %q", i, values[i], got[i])
		}
	}
}
