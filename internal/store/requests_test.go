package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/erazemk/izmenjava/internal/model"
)

func TestDonationScenario(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	item, _ := s.Items.AddItem(ctx, "alice", "Books", "Go in Action", "Good")

	req, err := s.Requests.SubmitRequest(ctx, item.ID, "bob")
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	want := model.Request{ID: 1, ItemID: item.ID, Recipient: "bob", Status: model.RequestStatusPending}
	if *req != want {
		t.Errorf("expected %+v, got %+v", want, *req)
	}

	n, _ := s.Requests.CountPending(ctx, "alice")
	if n != 1 {
		t.Errorf("expected 1 pending request for alice, got %d", n)
	}

	resolved, err := s.Requests.ResolveRequest(ctx, req.ID, model.DecisionApprove)
	if err != nil {
		t.Fatalf("ResolveRequest: %v", err)
	}
	if resolved.Status != model.RequestStatusApproved {
		t.Errorf("expected approved, got %q", resolved.Status)
	}

	got, _ := s.Items.Item(ctx, item.ID)
	if got.Status != model.ItemStatusDonated {
		t.Errorf("expected item donated, got %q", got.Status)
	}

	n, _ = s.Requests.CountPending(ctx, "alice")
	if n != 0 {
		t.Errorf("expected 0 pending requests after approval, got %d", n)
	}

	donations, err := s.Requests.ApprovedForRecipient(ctx, "bob")
	if err != nil {
		t.Fatalf("ApprovedForRecipient: %v", err)
	}
	if len(donations) != 1 {
		t.Fatalf("expected 1 donation, got %d", len(donations))
	}
	if donations[0].Request.ID != req.ID || donations[0].Item.ID != item.ID {
		t.Errorf("unexpected donation %+v", donations[0])
	}
	if donations[0].Item.Status != model.ItemStatusDonated {
		t.Errorf("expected joined item to be donated, got %q", donations[0].Item.Status)
	}
}

func TestRequestsFileFormat(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	item, _ := s.Items.AddItem(ctx, "alice", "Books", "a", "Good")
	s.Requests.SubmitRequest(ctx, item.ID, "bob")
	s.Requests.SubmitRequest(ctx, item.ID, "carol")
	s.Requests.ResolveRequest(ctx, 2, model.DecisionReject)

	want := "request_id,item_id,recipient_username,status\n" +
		"1,1,bob,pending\n" +
		"2,1,carol,rejected\n"
	if got := readFile(t, filepath.Join(dir, RequestsFile)); got != want {
		t.Errorf("unexpected requests file:\n%s", got)
	}
}

func TestSubmitRequestUnknownItem(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Requests.SubmitRequest(context.Background(), 99, "bob")
	if !errors.Is(err, ErrItemUnavailable) {
		t.Errorf("expected ErrItemUnavailable, got %v", err)
	}
}

func TestSubmitRequestRechecksAvailability(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Items.AddItem(ctx, "alice", "Books", "a", "Good")

	// The recipient sees the item listed...
	listed, _ := s.Items.ListAvailable(ctx)
	if len(listed) != 1 {
		t.Fatalf("expected 1 listed item, got %d", len(listed))
	}

	// ...but it is donated before they submit.
	s.Items.SetStatus(ctx, listed[0].ID, model.ItemStatusDonated)

	_, err := s.Requests.SubmitRequest(ctx, listed[0].ID, "bob")
	if !errors.Is(err, ErrItemUnavailable) {
		t.Errorf("expected ErrItemUnavailable, got %v", err)
	}

	all, _ := s.Requests.RequestsByRecipient(ctx, "bob")
	if len(all) != 0 {
		t.Errorf("expected no request recorded, got %d", len(all))
	}
}

func TestResolveRequestTerminal(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	item, _ := s.Items.AddItem(ctx, "alice", "Books", "a", "Good")
	approved, _ := s.Requests.SubmitRequest(ctx, item.ID, "bob")
	other, _ := s.Items.AddItem(ctx, "alice", "Toys", "b", "Good")
	rejected, _ := s.Requests.SubmitRequest(ctx, other.ID, "carol")

	s.Requests.ResolveRequest(ctx, approved.ID, model.DecisionApprove)
	s.Requests.ResolveRequest(ctx, rejected.ID, model.DecisionReject)

	requestsPath := filepath.Join(dir, RequestsFile)
	itemsPath := filepath.Join(dir, ItemsFile)
	requestsBefore := readFile(t, requestsPath)
	itemsBefore := readFile(t, itemsPath)

	tests := []struct {
		id       int64
		decision model.Decision
	}{
		{approved.ID, model.DecisionReject},
		{approved.ID, model.DecisionApprove},
		{rejected.ID, model.DecisionApprove},
		{rejected.ID, model.DecisionReject},
	}
	for _, tt := range tests {
		_, err := s.Requests.ResolveRequest(ctx, tt.id, tt.decision)
		if !errors.Is(err, ErrRequestResolved) {
			t.Errorf("ResolveRequest(%d, %s): expected ErrRequestResolved, got %v", tt.id, tt.decision, err)
		}
	}

	if readFile(t, requestsPath) != requestsBefore {
		t.Error("expected requests file unchanged")
	}
	if readFile(t, itemsPath) != itemsBefore {
		t.Error("expected items file unchanged")
	}
}

func TestRejectLeavesItemAvailable(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	item, _ := s.Items.AddItem(ctx, "alice", "Books", "a", "Good")
	req, _ := s.Requests.SubmitRequest(ctx, item.ID, "bob")

	resolved, err := s.Requests.ResolveRequest(ctx, req.ID, model.DecisionReject)
	if err != nil {
		t.Fatalf("ResolveRequest: %v", err)
	}
	if resolved.Status != model.RequestStatusRejected {
		t.Errorf("expected rejected, got %q", resolved.Status)
	}

	got, _ := s.Items.Item(ctx, item.ID)
	if got.Status != model.ItemStatusAvailable {
		t.Errorf("expected item still available, got %q", got.Status)
	}

	// Another recipient can still ask for it.
	if _, err := s.Requests.SubmitRequest(ctx, item.ID, "carol"); err != nil {
		t.Errorf("expected new request to succeed, got %v", err)
	}
}

func TestResolveRequestNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Requests.ResolveRequest(context.Background(), 5, model.DecisionApprove)
	if !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestResolveRequestInvalidDecision(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	item, _ := s.Items.AddItem(ctx, "alice", "Books", "a", "Good")
	req, _ := s.Requests.SubmitRequest(ctx, item.ID, "bob")

	_, err := s.Requests.ResolveRequest(ctx, req.ID, model.Decision("maybe"))
	if !errors.Is(err, model.ErrInvalidDecision) {
		t.Errorf("expected ErrInvalidDecision, got %v", err)
	}

	got, _ := s.Requests.Request(ctx, req.ID)
	if got.Status != model.RequestStatusPending {
		t.Errorf("expected request still pending, got %q", got.Status)
	}
}

func TestPendingForDonor(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a1, _ := s.Items.AddItem(ctx, "alice", "Books", "a1", "Good")
	a2, _ := s.Items.AddItem(ctx, "alice", "Books", "a2", "Good")
	b1, _ := s.Items.AddItem(ctx, "bob", "Toys", "b1", "Good")

	r1, _ := s.Requests.SubmitRequest(ctx, a1.ID, "carol")
	r2, _ := s.Requests.SubmitRequest(ctx, a2.ID, "dave")
	s.Requests.SubmitRequest(ctx, b1.ID, "carol")
	r4, _ := s.Requests.SubmitRequest(ctx, a2.ID, "erin")
	s.Requests.ResolveRequest(ctx, r2.ID, model.DecisionReject)

	pending, err := s.Requests.PendingForDonor(ctx, "alice")
	if err != nil {
		t.Fatalf("PendingForDonor: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != r1.ID || pending[1].ID != r4.ID {
		t.Errorf("expected requests %d and %d, got %v", r1.ID, r4.ID, pending)
	}

	n, _ := s.Requests.CountPending(ctx, "bob")
	if n != 1 {
		t.Errorf("expected 1 pending request for bob, got %d", n)
	}

	n, _ = s.Requests.CountPending(ctx, "nobody")
	if n != 0 {
		t.Errorf("expected 0 for unknown donor, got %d", n)
	}
}

func TestApprovedForRecipientFilters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	i1, _ := s.Items.AddItem(ctx, "alice", "Books", "a", "Good")
	i2, _ := s.Items.AddItem(ctx, "alice", "Books", "b", "Good")
	i3, _ := s.Items.AddItem(ctx, "alice", "Books", "c", "Good")

	r1, _ := s.Requests.SubmitRequest(ctx, i1.ID, "bob")
	s.Requests.SubmitRequest(ctx, i2.ID, "bob")
	r3, _ := s.Requests.SubmitRequest(ctx, i3.ID, "carol")
	s.Requests.ResolveRequest(ctx, r1.ID, model.DecisionApprove)
	s.Requests.ResolveRequest(ctx, r3.ID, model.DecisionApprove)

	donations, _ := s.Requests.ApprovedForRecipient(ctx, "bob")
	if len(donations) != 1 || donations[0].Item.Description != "a" {
		t.Errorf("expected only bob's approved item, got %v", donations)
	}
}

func TestResolveRequestAs(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	item, _ := s.Items.AddItem(ctx, "alice", "Books", "a", "Good")
	req, _ := s.Requests.SubmitRequest(ctx, item.ID, "bob")
	before := readFile(t, filepath.Join(dir, RequestsFile))

	_, err := s.Requests.ResolveRequestAs(ctx, "mallory", req.ID, model.DecisionApprove)
	if !errors.Is(err, ErrNotItemDonor) {
		t.Fatalf("expected ErrNotItemDonor, got %v", err)
	}
	if readFile(t, filepath.Join(dir, RequestsFile)) != before {
		t.Error("expected requests file unchanged")
	}

	resolved, err := s.Requests.ResolveRequestAs(ctx, "alice", req.ID, model.DecisionApprove)
	if err != nil {
		t.Fatalf("ResolveRequestAs: %v", err)
	}
	if resolved.Status != model.RequestStatusApproved {
		t.Errorf("expected approved, got %q", resolved.Status)
	}
}

func TestSecondApprovalOfSameItemFails(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	item, _ := s.Items.AddItem(ctx, "alice", "Books", "a", "Good")
	r1, _ := s.Requests.SubmitRequest(ctx, item.ID, "bob")
	s.Requests.SubmitRequest(ctx, item.ID, "carol")

	s.Requests.ResolveRequest(ctx, r1.ID, model.DecisionApprove)

	// The item is gone, so nobody else can ask for it.
	_, err := s.Requests.SubmitRequest(ctx, item.ID, "dave")
	if !errors.Is(err, ErrItemUnavailable) {
		t.Errorf("expected ErrItemUnavailable, got %v", err)
	}
}

func TestApproveSiblingRequestAfterDonation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	item, _ := s.Items.AddItem(ctx, "alice", "Books", "a", "Good")
	r1, _ := s.Requests.SubmitRequest(ctx, item.ID, "bob")
	r2, _ := s.Requests.SubmitRequest(ctx, item.ID, "carol")
	s.Requests.ResolveRequest(ctx, r1.ID, model.DecisionApprove)

	_, err := s.Requests.ResolveRequest(ctx, r2.ID, model.DecisionApprove)
	if !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got %v", err)
	}

	// Rejecting the leftover request is still allowed.
	if _, err := s.Requests.ResolveRequest(ctx, r2.ID, model.DecisionReject); err != nil {
		t.Errorf("expected reject to succeed, got %v", err)
	}

	donations, _ := s.Requests.ApprovedForRecipient(ctx, "carol")
	if len(donations) != 0 {
		t.Errorf("expected no donation for carol, got %v", donations)
	}
}
