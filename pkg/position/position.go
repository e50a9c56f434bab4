// Package position keeps the list scroll and selection position across host
// recreation. The Adapter is plain in-memory bookkeeping; a Store persists it when
// the host wants the position to outlive the process.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// PersistedPosition is the restorable list position.
type PersistedPosition struct {
	FirstVisibleIndex  int  `json:"firstVisibleIndex"`
	FirstVisibleOffset int  `json:"firstVisibleOffset"`
	LastSelectedID     *int `json:"lastSelectedId,omitempty"`
}

// Selected returns the last selected id, if any.
func (p PersistedPosition) Selected() (int, bool) {
	if p.LastSelectedID == nil {
		return 0, false
	}
	return *p.LastSelectedID, true
}

// IsZero reports whether p carries nothing worth restoring.
func (p PersistedPosition) IsZero() bool {
	return p.FirstVisibleIndex == 0 && p.FirstVisibleOffset == 0 && p.LastSelectedID == nil
}

func (p PersistedPosition) clone() PersistedPosition {
	if p.LastSelectedID != nil {
		id := *p.LastSelectedID
		p.LastSelectedID = &id
	}
	return p
}

// Adapter records scroll and selection events. Safe for concurrent use.
type Adapter struct {
	mu    sync.Mutex
	pos   PersistedPosition
	store Store
	key   string
}

// New returns an adapter with no prior state and no backing store.
func New() *Adapter {
	return &Adapter{}
}

// NewAdapter loads the position saved under key. A missing entry yields zero
// defaults. Save writes back to the same key.
func NewAdapter(ctx context.Context, store Store, key string) (*Adapter, error) {
	if store == nil {
		return nil, fmt.Errorf("position store is required")
	}
	if key == "" {
		return nil, fmt.Errorf("position key is required")
	}

	a := &Adapter{store: store, key: key}

	pos, err := store.Load(ctx, key)
	switch {
	case err == nil:
		a.pos = sanitize(pos)
	case errors.Is(err, ErrNotFound):
	default:
		return nil, fmt.Errorf("load position %q: %w", key, err)
	}

	return a, nil
}

// CaptureScroll records the first visible item and its pixel offset. Negative
// values are clamped to 0.
func (a *Adapter) CaptureScroll(index, offset int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pos.FirstVisibleIndex = max(index, 0)
	a.pos.FirstVisibleOffset = max(offset, 0)
}

// CaptureSelection records the last selected item id.
func (a *Adapter) CaptureSelection(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pos.LastSelectedID = &id
}

// Restore returns a copy of the current position.
func (a *Adapter) Restore() PersistedPosition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos.clone()
}

// Save writes the current position to the backing store. Without a store it is a no-op.
func (a *Adapter) Save(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	pos := a.Restore()
	if err := a.store.Save(ctx, a.key, pos); err != nil {
		return fmt.Errorf("save position %q: %w", a.key, err)
	}
	return nil
}

func sanitize(p PersistedPosition) PersistedPosition {
	p.FirstVisibleIndex = max(p.FirstVisibleIndex, 0)
	p.FirstVisibleOffset = max(p.FirstVisibleOffset, 0)
	return p.clone()
}
