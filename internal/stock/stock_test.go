package stock

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockfin/internal/store"
)

type recordingPersister struct {
	saves [][]store.TickerEntry
	err   error
}

func (p *recordingPersister) Save(entries []store.TickerEntry) error {
	p.saves = append(p.saves, entries)
	return p.err
}

func (p *recordingPersister) last() []store.TickerEntry {
	if len(p.saves) == 0 {
		return nil
	}
	return p.saves[len(p.saves)-1]
}

func tickers(stocks []*Stock) []string {
	out := make([]string, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, s.Ticker())
	}
	return out
}

func TestNewUsesPlaceholderName(t *testing.T) {
	s := New("AAPL", "")
	assert.Equal(t, "AAPL", s.Ticker())
	assert.Equal(t, PlaceholderName, s.Name())
	assert.Zero(t, s.Price())
	assert.Zero(t, s.PctChange1D())
	assert.Zero(t, s.PctChange1W())

	assert.Equal(t, "Apple", New("AAPL", "Apple").Name())
}

func TestStockNotifiesOnChangeOnly(t *testing.T) {
	s := New("AAPL", "")
	var fields []Field
	s.Observe(func(got *Stock, f Field) {
		assert.Same(t, s, got)
		fields = append(fields, f)
	})

	s.SetName("Apple Inc.")
	s.SetName("Apple Inc.")
	s.SetPrice(190.5)
	s.SetPrice(190.5)
	s.SetPctChange1D(0.012)
	s.SetPctChange1W(-0.03)
	s.SetPctChange1W(-0.03)

	assert.Equal(t, []Field{FieldName, FieldPrice, FieldPctChange1D, FieldPctChange1W}, fields)
}

func TestRegistryCreateDoesNotPersist(t *testing.T) {
	p := &recordingPersister{}
	reg := NewRegistry(p, zerolog.Nop())

	reg.Create("AAPL", "Apple")
	reg.Create("MSFT", "")

	assert.Empty(t, p.saves)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers(reg.Snapshot()))
	assert.Equal(t, PlaceholderName, reg.At(1).Name())
}

func TestRegistryAddAndRemovePersistFullList(t *testing.T) {
	p := &recordingPersister{}
	reg := NewRegistry(p, zerolog.Nop())

	reg.Add("AAPL", "Apple")
	reg.Add("MSFT", "Microsoft")
	reg.Add("AAPL", "Apple")
	require.Len(t, p.saves, 3)
	assert.Equal(t, []store.TickerEntry{
		{Symbol: "AAPL", Name: "Apple"},
		{Symbol: "MSFT", Name: "Microsoft"},
		{Symbol: "AAPL", Name: "Apple"},
	}, p.last())

	removed, err := reg.Remove(0)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", removed.Ticker())
	assert.False(t, reg.Contains(removed))
	require.Len(t, p.saves, 4)
	assert.Equal(t, []store.TickerEntry{
		{Symbol: "MSFT", Name: "Microsoft"},
		{Symbol: "AAPL", Name: "Apple"},
	}, p.last())
}

func TestRegistryPersistsPlaceholderAsEmptyName(t *testing.T) {
	file := store.NewTickerFile(filepath.Join(t.TempDir(), "tickers.json"))
	reg := NewRegistry(file, zerolog.Nop())
	reg.Add("NVDA", "")
	reg.Add("AAPL", "Apple")

	entries, err := file.Load()
	require.NoError(t, err)
	assert.Equal(t, []store.TickerEntry{
		{Symbol: "NVDA", Name: ""},
		{Symbol: "AAPL", Name: "Apple"},
	}, entries)

	reloaded := NewRegistry(nil, zerolog.Nop())
	for _, e := range entries {
		reloaded.Create(e.Symbol, e.Name)
	}
	assert.Equal(t, PlaceholderName, reloaded.At(0).Name())
	assert.Equal(t, "Apple", reloaded.At(1).Name())
}

func TestRegistryRemoveOutOfRange(t *testing.T) {
	p := &recordingPersister{}
	reg := NewRegistry(p, zerolog.Nop())
	reg.Create("AAPL", "")

	for _, pos := range []int{-1, 1, 5} {
		_, err := reg.Remove(pos)
		assert.ErrorIs(t, err, ErrPositionOutOfRange, "position %d", pos)
	}
	assert.Equal(t, 1, reg.Len())
	assert.Empty(t, p.saves)
}

func TestRegistrySaveFailureIsNotFatal(t *testing.T) {
	p := &recordingPersister{err: errors.New("disk full")}
	reg := NewRegistry(p, zerolog.Nop())

	s := reg.Add("AAPL", "")
	assert.True(t, reg.Contains(s))
	_, err := reg.Remove(0)
	assert.NoError(t, err)
}

func TestRegistryPositionIsIdentityBased(t *testing.T) {
	reg := NewRegistry(nil, zerolog.Nop())
	a := reg.Create("AAPL", "")
	b := reg.Create("AAPL", "")

	assert.Equal(t, 0, reg.Position(a))
	assert.Equal(t, 1, reg.Position(b))
	assert.Equal(t, -1, reg.Position(New("AAPL", "")))
}

func TestRegistryObserversSeeChanges(t *testing.T) {
	reg := NewRegistry(nil, zerolog.Nop())
	var changes []string
	reg.Observe(func(c Change) {
		changes = append(changes, fmt.Sprintf("%s %s@%d", c.Kind, c.Stock.Ticker(), c.Position))
	})

	reg.Create("AAPL", "")
	reg.Create("MSFT", "")
	_, err := reg.Remove(0)
	require.NoError(t, err)

	assert.Equal(t, []string{"added AAPL@0", "added MSFT@1", "removed AAPL@0"}, changes)
}

func TestSortedViewOrdersByDailyChangeDescending(t *testing.T) {
	reg := NewRegistry(nil, zerolog.Nop())
	view := NewSortedView(reg)

	a := reg.Create("A", "")
	b := reg.Create("B", "")
	c := reg.Create("C", "")
	d := reg.Create("D", "")
	e := reg.Create("E", "")

	a.SetPctChange1D(0.01)
	b.SetPctChange1D(0.05)
	c.SetPctChange1D(-0.02)
	d.SetPctChange1D(0.05)
	e.SetPctChange1D(0.01)

	// stale until invalidated
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, tickers(view.Stocks()))

	view.Invalidate()
	assert.Equal(t, []string{"B", "D", "A", "E", "C"}, tickers(view.Stocks()))
	assert.Same(t, b, view.At(0))
	assert.Equal(t, 2, view.RegistryPosition(view.At(4)))
}

func TestSortedViewRows(t *testing.T) {
	reg := NewRegistry(nil, zerolog.Nop())
	view := NewSortedView(reg)

	a := reg.Create("AAPL", "Apple")
	m := reg.Create("MSFT", "")
	a.SetPrice(190)
	a.SetPctChange1D(-0.01)
	a.SetPctChange1W(0.02)
	m.SetPctChange1D(0.03)
	view.Invalidate()

	assert.Equal(t, []Row{
		{Rank: 0, Position: 1, Ticker: "MSFT", Name: PlaceholderName, PctChange1D: 0.03},
		{Rank: 1, Position: 0, Ticker: "AAPL", Name: "Apple", Price: 190, PctChange1D: -0.01, PctChange1W: 0.02},
	}, view.Rows())
}

func TestSortedViewObservers(t *testing.T) {
	reg := NewRegistry(nil, zerolog.Nop())
	view := NewSortedView(reg)
	calls := 0
	view.Observe(func() { calls++ })

	reg.Create("AAPL", "")
	view.Invalidate()
	_, err := reg.Remove(0)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
}

// Membership of the view must match the registry after every add/remove,
// whatever the daily changes are.
func TestSortedViewMembershipTracksRegistry(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	reg := NewRegistry(&recordingPersister{}, zerolog.Nop())
	view := NewSortedView(reg)
	symbols := []string{"AAPL", "MSFT", "NVDA", "TSLA", "AAPL"}

	for step := 0; step < 500; step++ {
		if reg.Len() == 0 || rng.Intn(3) > 0 {
			s := reg.Add(symbols[rng.Intn(len(symbols))], "")
			s.SetPctChange1D(float64(rng.Intn(7)-3) / 100)
		} else {
			_, err := reg.Remove(rng.Intn(reg.Len()))
			require.NoError(t, err)
		}

		require.Equal(t, reg.Len(), view.Len(), "step %d", step)
		assert.ElementsMatch(t, reg.Snapshot(), view.Stocks(), "step %d", step)

		// Daily values changed after the add, so re-sort before checking order.
		view.Invalidate()
		ranked := view.Stocks()
		for i := 1; i < len(ranked); i++ {
			prev, cur := ranked[i-1], ranked[i]
			require.GreaterOrEqual(t, prev.PctChange1D(), cur.PctChange1D(), "step %d", step)
			if prev.PctChange1D() == cur.PctChange1D() {
				require.Less(t, reg.Position(prev), reg.Position(cur), "stable order at step %d", step)
			}
		}
	}
}
