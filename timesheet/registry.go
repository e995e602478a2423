package timesheet

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/timesheet-engine/generic"
)

// OwnersKey lists every owner that has configured a timesheet.
const OwnersKey = "timesheet/owners"

// Registry hands out one loaded Manager per owner and keeps the owner list
// the due-date scheduler iterates over.
type Registry struct {
	kv   generic.KVStore
	opts Options

	mu       sync.Mutex
	managers map[generic.OwnerID]*Manager
}

func NewRegistry(kv generic.KVStore, opts Options) *Registry {
	return &Registry{
		kv:       kv,
		opts:     opts.withDefaults(),
		managers: make(map[generic.OwnerID]*Manager),
	}
}

// ValidateOwner rejects IDs that cannot be used inside a storage key.
func ValidateOwner(owner generic.OwnerID) error {
	s := string(owner)
	if strings.TrimSpace(s) == "" || strings.Contains(s, "/") {
		return fmt.Errorf("%w: %q", generic.ErrInvalidOwner, s)
	}
	return nil
}

// Manager returns the owner's Manager, loading it on first use.
func (r *Registry) Manager(ctx context.Context, owner generic.OwnerID) (*Manager, error) {
	if err := ValidateOwner(owner); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[owner]; ok {
		return m, nil
	}
	m := NewManager(owner, r.kv, r.opts)
	if err := m.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading timesheet for %s: %w", owner, err)
	}
	r.managers[owner] = m
	return m, nil
}

// Configure records the owner and regenerates the owner's cycles. The owner
// is recorded before the settings are saved, so a configured owner is always
// visible to the due check. A listed owner without settings has no reminders.
func (r *Registry) Configure(ctx context.Context, owner generic.OwnerID, start generic.TimePoint, freq generic.Recurrence) (*Manager, error) {
	if !freq.Valid() {
		return nil, fmt.Errorf("%w: %q", generic.ErrInvalidFrequency, freq)
	}
	m, err := r.Manager(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := r.addOwner(ctx, owner); err != nil {
		return nil, err
	}
	if err := m.Regenerate(ctx, start, freq); err != nil {
		return nil, err
	}
	return m, nil
}

// Owners returns all configured owners, sorted.
func (r *Registry) Owners(ctx context.Context) ([]generic.OwnerID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownersLocked(ctx)
}

func (r *Registry) ownersLocked(ctx context.Context) ([]generic.OwnerID, error) {
	raw, found, err := r.kv.Get(ctx, OwnersKey)
	if err != nil {
		return nil, fmt.Errorf("loading owners: %w", err)
	}
	if !found {
		return nil, nil
	}
	var owners []generic.OwnerID
	if err := json.Unmarshal([]byte(raw), &owners); err != nil {
		return nil, &generic.RecordError{Key: OwnersKey, Index: -1, Reason: err.Error()}
	}
	return owners, nil
}

func (r *Registry) addOwner(ctx context.Context, owner generic.OwnerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owners, err := r.ownersLocked(ctx)
	if err != nil {
		return err
	}
	for _, o := range owners {
		if o == owner {
			return nil
		}
	}
	owners = append(owners, owner)
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	data, err := json.Marshal(owners)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, OwnersKey, string(data)); err != nil {
		return fmt.Errorf("saving owners: %w", err)
	}
	return nil
}
