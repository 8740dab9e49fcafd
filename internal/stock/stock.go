// Package stock holds the tracked instruments, their registry and the
// ranked view over it.
//
// Nothing in this package locks. Every value is confined to the goroutine
// running the engine's control loop; other goroutines only ever see Row
// copies.
package stock

// PlaceholderName is shown until a fetch or the user supplies a name.
const PlaceholderName = "?"

// Field identifies a mutable Stock attribute in change notifications.
type Field string

const (
	FieldName        Field = "name"
	FieldPrice       Field = "price"
	FieldPctChange1D Field = "pct_change_1d"
	FieldPctChange1W Field = "pct_change_1w"
)

type Stock struct {
	ticker      string
	name        string
	price       float64
	pctChange1D float64
	pctChange1W float64

	observers []func(*Stock, Field)
}

func New(ticker, name string) *Stock {
	if name == "" {
		name = PlaceholderName
	}
	return &Stock{ticker: ticker, name: name}
}

func (s *Stock) Ticker() string       { return s.ticker }
func (s *Stock) Name() string         { return s.name }
func (s *Stock) Price() float64       { return s.price }
func (s *Stock) PctChange1D() float64 { return s.pctChange1D }
func (s *Stock) PctChange1W() float64 { return s.pctChange1W }

// Observe registers fn to be called after a field changes value.
func (s *Stock) Observe(fn func(*Stock, Field)) {
	s.observers = append(s.observers, fn)
}

func (s *Stock) SetName(v string) {
	if s.name == v {
		return
	}
	s.name = v
	s.notify(FieldName)
}

func (s *Stock) SetPrice(v float64) {
	if s.price == v {
		return
	}
	s.price = v
	s.notify(FieldPrice)
}

func (s *Stock) SetPctChange1D(v float64) {
	if s.pctChange1D == v {
		return
	}
	s.pctChange1D = v
	s.notify(FieldPctChange1D)
}

func (s *Stock) SetPctChange1W(v float64) {
	if s.pctChange1W == v {
		return
	}
	s.pctChange1W = v
	s.notify(FieldPctChange1W)
}

func (s *Stock) notify(f Field) {
	for _, fn := range s.observers {
		fn(s, f)
	}
}

// Row is a detached copy of a Stock as it appears in the ranked view.
type Row struct {
	Rank        int     `json:"rank"`
	Position    int     `json:"position"`
	Ticker      string  `json:"ticker"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	PctChange1D float64 `json:"pct_change_1d"`
	PctChange1W float64 `json:"pct_change_1w"`
}

// AsRow copies s out of the control loop.
func (s *Stock) AsRow(rank, position int) Row {
	return Row{
		Rank:        rank,
		Position:    position,
		Ticker:      s.ticker,
		Name:        s.name,
		Price:       s.price,
		PctChange1D: s.pctChange1D,
		PctChange1W: s.pctChange1W,
	}
}
