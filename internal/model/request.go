package model

import (
	"errors"
	"strings"
)

// Request is a recipient's claim on one item.
type Request struct {
	ID        int64  `json:"id"`
	ItemID    int64  `json:"item_id"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
}

// Request statuses. Approved and rejected are terminal.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// ValidRequestStatus reports whether status is a known request status.
func ValidRequestStatus(status string) bool {
	switch status {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}

// Donation pairs an approved request with the item it transferred.
type Donation struct {
	Request Request `json:"request"`
	Item    Item    `json:"item"`
}

// Decision is a donor's answer to a pending request.
type Decision string

// Decisions.
const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ErrInvalidDecision is returned for anything other than approve or reject.
var ErrInvalidDecision = errors.New("decision must be approve or reject")

// ParseDecision parses a decision, ignoring case and surrounding space.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", ErrInvalidDecision
}

// Status returns the request status the decision leads to.
func (d Decision) Status() string {
	if d == DecisionApprove {
		return RequestStatusApproved
	}
	return RequestStatusRejected
}
