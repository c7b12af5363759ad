package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/erazemk/izmenjava/internal/model"
	"github.com/erazemk/izmenjava/internal/table"
)

// Requests is the request workflow. It owns request records and keeps them
// consistent with the item ledger.
type Requests struct {
	table   *table.Table[model.Request]
	items   *Items
	journal *Journal

	// mu serialises submissions and resolutions so an availability check and
	// the write that depends on it are not interleaved.
	mu sync.Mutex
}

// OpenRequests opens the request table stored at path. The journal may be
// nil, in which case approvals are not logged ahead.
func OpenRequests(path string, items *Items, journal *Journal) (*Requests, error) {
	t, err := table.Open[model.Request](path, requestCodec{})
	if err != nil {
		return nil, fmt.Errorf("opening requests: %w", err)
	}
	return &Requests{table: t, items: items, journal: journal}, nil
}

// SubmitRequest records a pending request by recipient for an item that is
// available right now.
func (s *Requests) SubmitRequest(ctx context.Context, itemID int64, recipient string) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.items.Item(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}
	if item == nil || item.Status != model.ItemStatusAvailable {
		return nil, ErrItemUnavailable
	}

	req, err := s.table.Insert(ctx, func(id int64) model.Request {
		return model.Request{
			ID:        id,
			ItemID:    itemID,
			Recipient: recipient,
			Status:    model.RequestStatusPending,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("submitting request: %w", err)
	}

	slog.Info("request submitted", "request", req.ID, "item", itemID, "recipient", recipient)
	return &req, nil
}

// Request returns a request by ID, or nil if there is none.
func (s *Requests) Request(ctx context.Context, id int64) (*model.Request, error) {
	for r, err := range s.table.Scan(ctx) {
		if err != nil {
			return nil, fmt.Errorf("getting request: %w", err)
		}
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, nil
}

// PendingForDonor returns pending requests for items listed by donor.
func (s *Requests) PendingForDonor(ctx context.Context, donor string) ([]model.Request, error) {
	items, err := s.items.byID(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}

	var pending []model.Request
	for r, err := range s.table.Scan(ctx) {
		if err != nil {
			return nil, fmt.Errorf("listing pending requests: %w", err)
		}
		if r.Status != model.RequestStatusPending {
			continue
		}
		if it, ok := items[r.ItemID]; ok && it.Donor == donor {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// CountPending returns the number of pending requests for donor's items.
func (s *Requests) CountPending(ctx context.Context, donor string) (int, error) {
	pending, err := s.PendingForDonor(ctx, donor)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// RequestsByRecipient returns every request made by recipient.
func (s *Requests) RequestsByRecipient(ctx context.Context, recipient string) ([]model.Request, error) {
	var out []model.Request
	for r, err := range s.table.Scan(ctx) {
		if err != nil {
			return nil, fmt.Errorf("listing recipient requests: %w", err)
		}
		if r.Recipient == recipient {
			out = append(out, r)
		}
	}
	return out, nil
}

// ApprovedForRecipient returns the approved requests of recipient joined
// with their items. Requests whose item is missing are left out.
func (s *Requests) ApprovedForRecipient(ctx context.Context, recipient string) ([]model.Donation, error) {
	items, err := s.items.byID(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing donations: %w", err)
	}

	var donations []model.Donation
	for r, err := range s.table.Scan(ctx) {
		if err != nil {
			return nil, fmt.Errorf("listing donations: %w", err)
		}
		if r.Status != model.RequestStatusApproved || r.Recipient != recipient {
			continue
		}
		if it, ok := items[r.ItemID]; ok {
			donations = append(donations, model.Donation{Request: r, Item: it})
		}
	}
	return donations, nil
}

// ResolveRequest approves or rejects a pending request. Approving also marks
// the item donated and fails with ErrItemUnavailable if the item has already
// gone to someone else. Requests that are no longer pending are left alone
// and ErrRequestResolved is returned.
func (s *Requests) ResolveRequest(ctx context.Context, id int64, decision model.Decision) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resolve(ctx, id, decision, func(*model.Request) error { return nil })
}

// ResolveRequestAs is ResolveRequest on behalf of donor, who must have
// listed the requested item.
func (s *Requests) ResolveRequestAs(ctx context.Context, donor string, id int64, decision model.Decision) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resolve(ctx, id, decision, func(req *model.Request) error {
		item, err := s.items.Item(ctx, req.ItemID)
		if err != nil {
			return fmt.Errorf("checking item: %w", err)
		}
		if item == nil || item.Donor != donor {
			return ErrNotItemDonor
		}
		return nil
	})
}

// resolve does the work of ResolveRequest. The caller holds s.mu.
func (s *Requests) resolve(ctx context.Context, id int64, decision model.Decision, check func(*model.Request) error) (*model.Request, error) {
	decision, err := model.ParseDecision(string(decision))
	if err != nil {
		return nil, err
	}

	req, err := s.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.Status != model.RequestStatusPending {
		return nil, fmt.Errorf("%w: request %d is %s", ErrRequestResolved, id, req.Status)
	}
	if err := check(req); err != nil {
		return nil, err
	}

	if decision == model.DecisionReject {
		if err := s.setStatus(ctx, id, decision.Status()); err != nil {
			return nil, err
		}
		req.Status = decision.Status()
		slog.Info("request rejected", "request", id, "item", req.ItemID)
		return req, nil
	}

	// Another request for the same item may have been approved already.
	item, err := s.items.Item(ctx, req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}
	if item == nil || item.Status != model.ItemStatusAvailable {
		return nil, ErrItemUnavailable
	}
	// An earlier approval of this item failed halfway and awaits Recover.
	if s.journal != nil {
		busy, err := s.journal.inFlight(ctx, req.ItemID)
		if err != nil {
			return nil, err
		}
		if busy {
			return nil, fmt.Errorf("%w: approval of item %d not finished", ErrItemUnavailable, req.ItemID)
		}
	}

	var intentID string
	if s.journal != nil {
		if intentID, err = s.journal.Begin(ctx, id, req.ItemID); err != nil {
			return nil, err
		}
	}
	if err := s.approve(ctx, id, req.ItemID); err != nil {
		return nil, err
	}
	if s.journal != nil {
		if err := s.journal.Commit(ctx, intentID, id, req.ItemID); err != nil {
			return nil, err
		}
	}

	req.Status = decision.Status()
	slog.Info("request approved", "request", id, "item", req.ItemID, "recipient", req.Recipient)
	return req, nil
}

// approve writes both halves of an approval: the request first, then the
// item. The two files are not updated atomically.
func (s *Requests) approve(ctx context.Context, requestID, itemID int64) error {
	if err := s.setStatus(ctx, requestID, model.RequestStatusApproved); err != nil {
		return err
	}
	if err := s.items.SetStatus(ctx, itemID, model.ItemStatusDonated); err != nil {
		return fmt.Errorf("marking item donated: %w", err)
	}
	return nil
}

func (s *Requests) setStatus(ctx context.Context, id int64, status string) error {
	err := s.table.Rewrite(ctx, func(r model.Request) (model.Request, bool) {
		if r.ID == id {
			r.Status = status
		}
		return r, true
	})
	if err != nil {
		return fmt.Errorf("setting request status: %w", err)
	}
	return nil
}

// Recover finishes approvals that were interrupted after their journal entry
// was written and then compacts the journal. It returns the number of
// approvals replayed.
func (s *Requests) Recover(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.journal.pending(ctx)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, in := range pending {
		req, err := s.Request(ctx, in.RequestID)
		if err != nil {
			return 0, err
		}
		if req == nil || req.Status == model.RequestStatusRejected {
			slog.Warn("dropping approval intent for missing or rejected request",
				"intent", in.ID, "request", in.RequestID)
		} else if err := s.approve(ctx, in.RequestID, in.ItemID); err != nil {
			return 0, fmt.Errorf("replaying approval of request %d: %w", in.RequestID, err)
		} else {
			replayed++
			slog.Info("approval replayed", "intent", in.ID, "request", in.RequestID, "item", in.ItemID)
		}
		if err := s.journal.Commit(ctx, in.ID, in.RequestID, in.ItemID); err != nil {
			return 0, err
		}
	}

	if err := s.journal.Compact(ctx); err != nil {
		return 0, err
	}
	return replayed, nil
}
