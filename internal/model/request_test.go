package model

import (
	"errors"
	"testing"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in      string
		want    Decision
		wantErr bool
	}{
		{"approve", DecisionApprove, false},
		{" Reject ", DecisionReject, false},
		{"APPROVE", DecisionApprove, false},
		{"maybe", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDecision(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidDecision) {
				t.Errorf("ParseDecision(%q) error = %v, want ErrInvalidDecision", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseDecision(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestDecisionStatus(t *testing.T) {
	if DecisionApprove.Status() != RequestStatusApproved {
		t.Errorf("expected approve to lead to %q", RequestStatusApproved)
	}
	if DecisionReject.Status() != RequestStatusRejected {
		t.Errorf("expected reject to lead to %q", RequestStatusRejected)
	}
}
