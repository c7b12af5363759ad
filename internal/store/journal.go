package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/izmenjava/internal/table"
)

// Journal is a write-ahead log of approvals. An approval touches the request
// table and then the item table; the journal records the intent first so an
// approval interrupted between the two can be finished later.
type Journal struct {
	table *table.Table[intent]
}

// OpenJournal opens the approval journal stored at path.
func OpenJournal(path string) (*Journal, error) {
	t, err := table.Open[intent](path, intentCodec{})
	if err != nil {
		return nil, fmt.Errorf("opening approval journal: %w", err)
	}
	return &Journal{table: t}, nil
}

// Begin records that requestID is about to be approved.
func (j *Journal) Begin(ctx context.Context, requestID, itemID int64) (string, error) {
	in := intent{
		ID:        uuid.NewString(),
		RequestID: requestID,
		ItemID:    itemID,
		State:     intentStarted,
	}
	if err := j.table.Append(ctx, in); err != nil {
		return "", fmt.Errorf("recording approval intent: %w", err)
	}
	return in.ID, nil
}

// Commit records that the approval with the given intent id is complete.
func (j *Journal) Commit(ctx context.Context, intentID string, requestID, itemID int64) error {
	in := intent{ID: intentID, RequestID: requestID, ItemID: itemID, State: intentCommitted}
	if err := j.table.Append(ctx, in); err != nil {
		return fmt.Errorf("committing approval intent: %w", err)
	}
	return nil
}

// pending returns started intents without a commit, in file order.
func (j *Journal) pending(ctx context.Context) ([]intent, error) {
	rows, err := j.table.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading approval journal: %w", err)
	}

	committed := make(map[string]bool)
	for _, in := range rows {
		if in.State == intentCommitted {
			committed[in.ID] = true
		}
	}

	var pending []intent
	for _, in := range rows {
		if in.State == intentStarted && !committed[in.ID] {
			pending = append(pending, in)
		}
	}
	return pending, nil
}

// inFlight reports whether an unfinished approval of itemID is logged.
func (j *Journal) inFlight(ctx context.Context, itemID int64) (bool, error) {
	pending, err := j.pending(ctx)
	if err != nil {
		return false, err
	}
	for _, in := range pending {
		if in.ItemID == itemID {
			return true, nil
		}
	}
	return false, nil
}

// Compact drops every committed intent from the journal.
func (j *Journal) Compact(ctx context.Context) error {
	rows, err := j.table.All(ctx)
	if err != nil {
		return fmt.Errorf("reading approval journal: %w", err)
	}
	committed := make(map[string]bool)
	for _, in := range rows {
		if in.State == intentCommitted {
			committed[in.ID] = true
		}
	}
	if len(committed) == 0 {
		return nil
	}

	err = j.table.Rewrite(ctx, func(in intent) (intent, bool) {
		return in, !committed[in.ID]
	})
	if err != nil {
		return fmt.Errorf("compacting approval journal: %w", err)
	}
	return nil
}
