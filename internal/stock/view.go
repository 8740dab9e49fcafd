package stock

import "sort"

// SortedView ranks the registry by PctChange1D, highest first. Ties keep
// registry order.
type SortedView struct {
	reg       *Registry
	order     []*Stock
	observers []func()
}

// NewSortedView builds the view and keeps it in step with registry
// membership.
func NewSortedView(reg *Registry) *SortedView {
	v := &SortedView{reg: reg}
	reg.Observe(func(Change) { v.Invalidate() })
	v.Invalidate()
	return v
}

// Observe registers fn to run after every recompute.
func (v *SortedView) Observe(fn func()) {
	v.observers = append(v.observers, fn)
}

// Invalidate recomputes the ordering from the registry.
func (v *SortedView) Invalidate() {
	order := v.reg.Snapshot()
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].PctChange1D() > order[j].PctChange1D()
	})
	v.order = order
	for _, fn := range v.observers {
		fn()
	}
}

func (v *SortedView) Len() int {
	return len(v.order)
}

// At returns the stock ranked at rank (0 is the best performer).
func (v *SortedView) At(rank int) *Stock {
	return v.order[rank]
}

// RegistryPosition maps a ranked stock back to its registry index.
func (v *SortedView) RegistryPosition(s *Stock) int {
	return v.reg.Position(s)
}

func (v *SortedView) Stocks() []*Stock {
	out := make([]*Stock, len(v.order))
	copy(out, v.order)
	return out
}

// Rows copies the ranked stocks out of the view.
func (v *SortedView) Rows() []Row {
	out := make([]Row, 0, len(v.order))
	for rank, s := range v.order {
		out = append(out, s.AsRow(rank, v.reg.Position(s)))
	}
	return out
}
