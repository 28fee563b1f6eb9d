package repository

import (
	"log/slog"
	"sync"
	"time"

	"github.com/babui-rent/babui/internal/domain"
)

type subscriber struct {
	id uint64
	fn domain.ChangeListener
}

// MemoryPropertyRepository implements domain.PropertyRepository in process memory.
// Records keep insertion order; Get/Update/Remove find them through an id index.
type MemoryPropertyRepository struct {
	mu          sync.RWMutex
	items       []domain.Property
	index       map[string]int
	subscribers []subscriber
	nextSubID   uint64
	now         func() time.Time
	logger      *slog.Logger
}

// NewMemoryPropertyRepository creates an empty repository
func NewMemoryPropertyRepository(logger *slog.Logger) *MemoryPropertyRepository {
	return &MemoryPropertyRepository{
		index:  make(map[string]int),
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the time source used for CreatedAt/UpdatedAt stamps
func (r *MemoryPropertyRepository) WithClock(now func() time.Time) *MemoryPropertyRepository {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
	return r
}

// Add stores a copy of p at the end of the collection
func (r *MemoryPropertyRepository) Add(p domain.Property) error {
	if p.ID == "" {
		return domain.ErrMissingID
	}

	r.mu.Lock()
	if _, exists := r.index[p.ID]; exists {
		r.mu.Unlock()
		return &domain.DuplicateIDError{ID: p.ID}
	}

	stored := p.Clone()
	if stored.Currency == "" {
		stored.Currency = domain.DefaultCurrency
	}
	ts := r.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = ts
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	r.index[stored.ID] = len(r.items)
	r.items = append(r.items, stored)
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.logger.Debug("property added", slog.String("property_id", stored.ID))
	r.notify(listeners, domain.ChangeEvent{
		Kind:       domain.ChangeAdded,
		PropertyID: stored.ID,
		Property:   stored,
		At:         ts,
	})
	return nil
}

// Update merges patch into the record with the given id.
// It reports false when no such record exists.
func (r *MemoryPropertyRepository) Update(id string, patch domain.PropertyPatch) (bool, error) {
	r.mu.Lock()
	i, ok := r.index[id]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	if patch.IsEmpty() {
		r.mu.Unlock()
		return true, nil
	}

	ts := r.now()
	patch.ApplyTo(&r.items[i], ts)
	updated := r.items[i].Clone()
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.logger.Debug("property updated", slog.String("property_id", id))
	r.notify(listeners, domain.ChangeEvent{
		Kind:       domain.ChangeUpdated,
		PropertyID: id,
		Property:   updated,
		At:         ts,
	})
	return true, nil
}

// Remove deletes the record with the given id and reports whether it existed
func (r *MemoryPropertyRepository) Remove(id string) bool {
	r.mu.Lock()
	i, ok := r.index[id]
	if !ok {
		r.mu.Unlock()
		return false
	}

	removed := r.items[i]
	r.items = append(r.items[:i], r.items[i+1:]...)
	delete(r.index, id)
	for j := i; j < len(r.items); j++ {
		r.index[r.items[j].ID] = j
	}
	ts := r.now()
	listeners := r.listenersLocked()
	r.mu.Unlock()

	r.logger.Debug("property removed", slog.String("property_id", id))
	r.notify(listeners, domain.ChangeEvent{
		Kind:       domain.ChangeRemoved,
		PropertyID: id,
		Property:   removed,
		At:         ts,
	})
	return true
}

// Get returns a copy of the record with the given id
func (r *MemoryPropertyRepository) Get(id string) (domain.Property, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return domain.Property{}, false
	}
	return r.items[i].Clone(), true
}

// List returns copies of every record in insertion order
func (r *MemoryPropertyRepository) List() []domain.Property {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Property, len(r.items))
	for i, p := range r.items {
		out[i] = p.Clone()
	}
	return out
}

// Len returns the number of stored records
func (r *MemoryPropertyRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Subscribe registers fn for change events. The returned func removes it and
// may be called more than once.
func (r *MemoryPropertyRepository) Subscribe(fn domain.ChangeListener) func() {
	r.mu.Lock()
	r.nextSubID++
	id := r.nextSubID
	r.subscribers = append(r.subscribers, subscriber{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, s := range r.subscribers {
				if s.id == id {
					r.subscribers = append(r.subscribers[:i:i], r.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (r *MemoryPropertyRepository) listenersLocked() []domain.ChangeListener {
	if len(r.subscribers) == 0 {
		return nil
	}
	out := make([]domain.ChangeListener, len(r.subscribers))
	for i, s := range r.subscribers {
		out[i] = s.fn
	}
	return out
}

// notify runs outside the lock so listeners may call back into the repository
func (r *MemoryPropertyRepository) notify(listeners []domain.ChangeListener, ev domain.ChangeEvent) {
	for _, fn := range listeners {
		e := ev
		e.Property = ev.Property.Clone()
		fn(e)
	}
}

var _ domain.PropertyRepository = (*MemoryPropertyRepository)(nil)
