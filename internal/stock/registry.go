package stock

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"stockfin/internal/store"
)

var ErrPositionOutOfRange = errors.New("position out of range")

// Persister saves the full tracked list. store.TickerFile implements it.
type Persister interface {
	Save(entries []store.TickerEntry) error
}

type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
)

func (k ChangeKind) String() string {
	if k == Added {
		return "added"
	}
	return "removed"
}

// Change describes one membership change. Position is the index the stock
// occupied (Removed) or now occupies (Added).
type Change struct {
	Kind     ChangeKind
	Stock    *Stock
	Position int
}

// Registry is the ordered set of tracked stocks. Duplicate tickers are
// admitted.
type Registry struct {
	stocks    []*Stock
	persister Persister
	observers []func(Change)
	log       zerolog.Logger
}

// NewRegistry returns an empty registry. persister may be nil.
func NewRegistry(persister Persister, log zerolog.Logger) *Registry {
	return &Registry{
		persister: persister,
		log:       log.With().Str("component", "registry").Logger(),
	}
}

// Observe registers fn for membership changes.
func (r *Registry) Observe(fn func(Change)) {
	r.observers = append(r.observers, fn)
}

// Create appends a stock with zero price and changes without persisting.
func (r *Registry) Create(ticker, name string) *Stock {
	s := New(ticker, name)
	r.stocks = append(r.stocks, s)
	r.emit(Change{Kind: Added, Stock: s, Position: len(r.stocks) - 1})
	return s
}

// Add is Create followed by a save of the whole list.
func (r *Registry) Add(ticker, name string) *Stock {
	s := r.Create(ticker, name)
	r.save()
	return s
}

// Remove deletes the stock at position and saves the remaining list. The
// removed stock is returned detached.
func (r *Registry) Remove(position int) (*Stock, error) {
	if position < 0 || position >= len(r.stocks) {
		return nil, fmt.Errorf("remove %d of %d: %w", position, len(r.stocks), ErrPositionOutOfRange)
	}
	s := r.stocks[position]
	r.stocks = append(r.stocks[:position:position], r.stocks[position+1:]...)
	r.emit(Change{Kind: Removed, Stock: s, Position: position})
	r.save()
	return s, nil
}

// Snapshot returns the current members in insertion order.
func (r *Registry) Snapshot() []*Stock {
	out := make([]*Stock, len(r.stocks))
	copy(out, r.stocks)
	return out
}

func (r *Registry) Len() int {
	return len(r.stocks)
}

func (r *Registry) At(position int) *Stock {
	return r.stocks[position]
}

// Position finds s by identity, -1 when it is not tracked.
func (r *Registry) Position(s *Stock) int {
	for i, cur := range r.stocks {
		if cur == s {
			return i
		}
	}
	return -1
}

func (r *Registry) Contains(s *Stock) bool {
	return r.Position(s) >= 0
}

// Entries returns the (ticker, name) pairs in current order. A stock still
// showing the placeholder is written with an empty name.
func (r *Registry) Entries() []store.TickerEntry {
	out := make([]store.TickerEntry, 0, len(r.stocks))
	for _, s := range r.stocks {
		name := s.Name()
		if name == PlaceholderName {
			name = ""
		}
		out = append(out, store.TickerEntry{Symbol: s.Ticker(), Name: name})
	}
	return out
}

func (r *Registry) save() {
	if r.persister == nil {
		return
	}
	if err := r.persister.Save(r.Entries()); err != nil {
		r.log.Warn().Err(err).Int("count", len(r.stocks)).Msg("save tickers failed")
	}
}

func (r *Registry) emit(c Change) {
	for _, fn := range r.observers {
		fn(c)
	}
}
