// Package order implements the pending-order book and trigger evaluation
// for one simulated instrument: the Order Manager.
package order

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Type is the order execution style.
type Type string

const (
	Market Type = "market"
	Stop   Type = "stop"
	Limit  Type = "limit"
)

// Tag classifies the purpose of an order for conflict resolution and
// reporting. tp1..tpN are represented as arbitrary strings with the "tp"
// prefix; use IsTakeProfit to test membership.
type Tag string

const (
	TagEntry  Tag = "entry"
	TagSL     Tag = "sl"
	TagTrail  Tag = "trail"
	TagSignal Tag = "signal"
	TagEOD    Tag = "eod"
)

// IsTakeProfit reports whether tag names a take-profit slice (tp1, tp2, ...).
func (t Tag) IsTakeProfit() bool {
	return len(t) >= 3 && t[:2] == "tp"
}

// Order is a resting instruction against the book. TriggerPx is required for
// Stop and Limit orders and ignored for Market.
type Order struct {
	ID          int64
	Side        Side
	Type        Type
	TriggerPx   float64
	Size        float64
	ReduceOnly  bool
	Tag         Tag
	EntryComment string
}

// Fill records the execution of an order against a bar.
type Fill struct {
	OrderID  int64
	Price    float64
	Size     float64
	Side     Side
	Fee      float64
	Slippage float64
	T        int64
	Tag      Tag
	EntryComment string
}

// pending pairs an Order with the entry comment it was created with, per
// the data model's "(Order, entry-comment)" pending-order pair.
type pending struct {
	order Order
}

// Manager owns the pending-order book for a single simulated instrument.
type Manager struct {
	orders     []pending
	nextID     int64
	slippageBp float64
	commPct    float64
}

// New creates an order manager with the given execution-cost parameters.
func New(slippageBps, commissionPct float64) *Manager {
	return &Manager{slippageBp: slippageBps, commPct: commissionPct}
}

// ResetIDs resets the monotonic order-id generator to zero. Used by tests
// that require deterministic, reproducible order ids across runs.
func (m *Manager) ResetIDs() {
	m.nextID = 0
}

// AddOrder appends a new order to the book, assigning it the next id, and
// returns the assigned id.
func (m *Manager) AddOrder(o Order) int64 {
	m.nextID++
	o.ID = m.nextID
	m.orders = append(m.orders, pending{order: o})
	return o.ID
}

// RemoveOrderByTag drops every pending order carrying the given tag.
func (m *Manager) RemoveOrderByTag(tag Tag) {
	kept := m.orders[:0]
	for _, p := range m.orders {
		if p.order.Tag != tag {
			kept = append(kept, p)
		}
	}
	m.orders = kept
}

// ClearOrders empties the pending book entirely.
func (m *Manager) ClearOrders() {
	m.orders = nil
}

// Pending returns a read-only snapshot of the currently pending orders.
func (m *Manager) Pending() []Order {
	out := make([]Order, len(m.orders))
	for i, p := range m.orders {
		out[i] = p.order
	}
	return out
}

// FindByTag returns the first pending order carrying tag, if any.
func (m *Manager) FindByTag(tag Tag) (Order, bool) {
	for _, p := range m.orders {
		if p.order.Tag == tag {
			return p.order, true
		}
	}
	return Order{}, false
}

// CandleView is the minimal bar shape the order manager needs to evaluate
// triggers, decoupled from the candle package to avoid a cyclic import.
type CandleView struct {
	T     int64
	Open  float64
	High  float64
	Low   float64
}

// Result is the outcome of evaluating one bar against the pending book.
type Result struct {
	Fills        []Fill
	CancelledIDs []int64
}

// triggered reports whether the order's trigger condition is met on this
// bar, and the pre-slippage fill price.
func triggered(o Order, c CandleView) (bool, float64) {
	switch o.Type {
	case Market:
		return true, c.Open
	case Stop:
		if o.Side == Buy {
			return c.High >= o.TriggerPx, o.TriggerPx
		}
		return c.Low <= o.TriggerPx, o.TriggerPx
	case Limit:
		if o.Side == Buy {
			return c.Low <= o.TriggerPx, o.TriggerPx
		}
		return c.High >= o.TriggerPx, o.TriggerPx
	}
	return false, 0
}

// applySlippage worsens a market/stop fill price by slippageBps/10000;
// limit fills receive none (favorable execution by construction).
func (m *Manager) applySlippage(o Order, price float64) float64 {
	if o.Type == Limit {
		return price
	}
	adj := price * m.slippageBp / 10000
	if o.Side == Buy {
		return price + adj
	}
	return price - adj
}

func (m *Manager) commission(price, size float64) float64 {
	return price * size * m.commPct / 100
}

// CheckOrders evaluates every pending order against one bar, resolving
// same-bar SL/TP conflicts pessimistically (SL wins), and removes triggered
// and cancelled orders from the book.
func (m *Manager) CheckOrders(c CandleView) Result {
	var triggeredOrders []Order
	var remaining []pending

	for _, p := range m.orders {
		ok, px := triggered(p.order, c)
		if ok {
			o := p.order
			o.TriggerPx = px
			triggeredOrders = append(triggeredOrders, o)
		} else {
			remaining = append(remaining, p)
		}
	}

	slHit := false
	for _, o := range triggeredOrders {
		if o.Tag == TagSL {
			slHit = true
			break
		}
	}

	var result Result
	if slHit {
		for _, o := range triggeredOrders {
			if o.Tag.IsTakeProfit() {
				result.CancelledIDs = append(result.CancelledIDs, o.ID)
				continue
			}
			result.Fills = append(result.Fills, m.fillFrom(o, c.T))
		}
	} else {
		for _, o := range triggeredOrders {
			result.Fills = append(result.Fills, m.fillFrom(o, c.T))
		}
	}

	m.orders = remaining
	return result
}

func (m *Manager) fillFrom(o Order, t int64) Fill {
	fillPx := m.applySlippage(o, o.TriggerPx)
	slip := 0.0
	if o.Type != Limit {
		slip = abs(fillPx - o.TriggerPx)
	}
	fee := m.commission(fillPx, o.Size)
	return Fill{
		OrderID:      o.ID,
		Price:        fillPx,
		Size:         o.Size,
		Side:         o.Side,
		Fee:          fee,
		Slippage:     slip * o.Size,
		T:            t,
		Tag:          o.Tag,
		EntryComment: o.EntryComment,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
