// Package store implements the donation ledgers: items, requests and the
// approval journal, each kept in its own file under a data directory.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// File names inside the data directory.
const (
	ItemsFile     = "items.txt"
	RequestsFile  = "requests.txt"
	ApprovalsFile = "approvals.txt"
)

// Store bundles the ledgers of one data directory.
type Store struct {
	Items    *Items
	Requests *Requests
	Journal  *Journal

	// Recovered is the number of approvals finished by Open.
	Recovered int
}

// Open opens or creates every ledger in dir and finishes any approval left
// incomplete by a crash.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	items, err := OpenItems(filepath.Join(dir, ItemsFile))
	if err != nil {
		return nil, err
	}
	journal, err := OpenJournal(filepath.Join(dir, ApprovalsFile))
	if err != nil {
		return nil, err
	}
	requests, err := OpenRequests(filepath.Join(dir, RequestsFile), items, journal)
	if err != nil {
		return nil, err
	}

	n, err := requests.Recover(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovering approvals: %w", err)
	}
	if n > 0 {
		slog.Warn("finished interrupted approvals", "count", n)
	}

	return &Store{Items: items, Requests: requests, Journal: journal, Recovered: n}, nil
}
