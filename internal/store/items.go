package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erazemk/izmenjava/internal/model"
	"github.com/erazemk/izmenjava/internal/table"
)

// Items is the item ledger.
type Items struct {
	table *table.Table[model.Item]
}

// OpenItems opens the item ledger stored at path.
func OpenItems(path string) (*Items, error) {
	t, err := table.Open[model.Item](path, itemCodec{})
	if err != nil {
		return nil, fmt.Errorf("opening items: %w", err)
	}
	return &Items{table: t}, nil
}

// AvailableOnly keeps available items.
func AvailableOnly(it model.Item) bool {
	return it.Status == model.ItemStatusAvailable
}

// AddItem lists a new available item.
func (s *Items) AddItem(ctx context.Context, donor, category, description, condition string) (*model.Item, error) {
	item, err := s.table.Insert(ctx, func(id int64) model.Item {
		return model.Item{
			ID:          id,
			Donor:       donor,
			Category:    category,
			Description: description,
			Condition:   condition,
			Status:      model.ItemStatusAvailable,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("adding item: %w", err)
	}
	return &item, nil
}

// Item returns an item by ID, or nil if there is none.
func (s *Items) Item(ctx context.Context, id int64) (*model.Item, error) {
	for it, err := range s.table.Scan(ctx) {
		if err != nil {
			return nil, fmt.Errorf("getting item: %w", err)
		}
		if it.ID == id {
			return &it, nil
		}
	}
	return nil, nil
}

// ListAvailable returns available items in file order.
func (s *Items) ListAvailable(ctx context.Context) ([]model.Item, error) {
	items, err := s.filter(ctx, AvailableOnly)
	if err != nil {
		return nil, fmt.Errorf("listing available items: %w", err)
	}
	return items, nil
}

// ListByDonor returns every item listed by donor, whatever its status.
func (s *Items) ListByDonor(ctx context.Context, donor string) ([]model.Item, error) {
	items, err := s.filter(ctx, func(it model.Item) bool { return it.Donor == donor })
	if err != nil {
		return nil, fmt.Errorf("listing donor items: %w", err)
	}
	return items, nil
}

// DistinctCategories returns the categories of the items accepted by keep,
// deduplicated case-insensitively. Each category is spelled as it first
// appears in the file. A nil keep means AvailableOnly.
func (s *Items) DistinctCategories(ctx context.Context, keep func(model.Item) bool) ([]string, error) {
	if keep == nil {
		keep = AvailableOnly
	}

	seen := make(map[string]bool)
	var categories []string
	for it, err := range s.table.Scan(ctx) {
		if err != nil {
			return nil, fmt.Errorf("listing categories: %w", err)
		}
		if !keep(it) {
			continue
		}
		key := strings.ToLower(it.Category)
		if seen[key] {
			continue
		}
		seen[key] = true
		categories = append(categories, it.Category)
	}
	return categories, nil
}

// FindByCategory returns available items whose category matches,
// ignoring case.
func (s *Items) FindByCategory(ctx context.Context, category string) ([]model.Item, error) {
	want := strings.ToLower(category)
	items, err := s.filter(ctx, func(it model.Item) bool {
		return AvailableOnly(it) && strings.ToLower(it.Category) == want
	})
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}
	return items, nil
}

// SetStatus changes an item's status. An unknown id is not an error: the
// table is rewritten unchanged. A donated item keeps its status and
// ErrItemDonated is returned.
func (s *Items) SetStatus(ctx context.Context, id int64, status string) error {
	if !model.ValidItemStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	found, donated := false, false
	err := s.table.Rewrite(ctx, func(it model.Item) (model.Item, bool) {
		if it.ID != id {
			return it, true
		}
		found = true
		if it.Status == model.ItemStatusDonated && status != model.ItemStatusDonated {
			donated = true
			return it, true
		}
		it.Status = status
		return it, true
	})
	if err != nil {
		return fmt.Errorf("setting item status: %w", err)
	}
	if donated {
		return fmt.Errorf("%w: item %d", ErrItemDonated, id)
	}
	if !found {
		slog.Debug("item status update matched nothing", "item", id, "status", status)
	}
	return nil
}

func (s *Items) filter(ctx context.Context, keep func(model.Item) bool) ([]model.Item, error) {
	var items []model.Item
	for it, err := range s.table.Scan(ctx) {
		if err != nil {
			return nil, err
		}
		if keep(it) {
			items = append(items, it)
		}
	}
	return items, nil
}

// byID indexes every item by id.
func (s *Items) byID(ctx context.Context) (map[int64]model.Item, error) {
	m := make(map[int64]model.Item)
	for it, err := range s.table.Scan(ctx) {
		if err != nil {
			return nil, err
		}
		m[it.ID] = it
	}
	return m, nil
}
