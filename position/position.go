// Package position implements the single-instrument Position Tracker: the
// lifecycle of at most one open position, including partial closes and the
// PnL/R-multiple ledger of completed trades.
package position

import "fmt"

// Direction is the side of an open position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// ExitType classifies how a close or partial close happened.
type ExitType string

const (
	ExitSL     ExitType = "sl"
	ExitTrail  ExitType = "trail"
	ExitSignal ExitType = "signal"
	ExitEOD    ExitType = "eod"
	// take-profit exits use the originating order's tag verbatim (tp1, tp2, ...).
)

// Fill is the minimal execution record the tracker needs, decoupled from the
// order package to avoid a cyclic import.
type Fill struct {
	Price    float64
	Size     float64
	Fee      float64
	Slippage float64
	T        int64
}

// CompletedTrade is the immutable record produced when a position, or a
// slice of one, closes.
type CompletedTrade struct {
	Direction      Direction
	EntryPrice     float64
	ExitPrice      float64
	EntryT         int64
	ExitT          int64
	EntryBar       int
	ExitBar        int
	HeldBars       int
	Size           float64
	PnL            float64
	PnLPercent     float64
	RMultiple      float64
	Commission     float64
	Slippage       float64
	ExitType       ExitType
	EntryComment   string
	ExitComment    string
}

// Position is the tracker's open-position state. A zero Position is flat.
type Position struct {
	open         bool
	direction    Direction
	entryPrice   float64
	size         float64
	stopDistance float64
	entryFee     float64
	entryT       int64
	entryBar     int
	entryComment string

	mtmPnL       float64
	partialPnL   float64 // realized PnL already booked from earlier partial closes

	entryFeeCharged bool // whether p.entryFee has already been deducted from some close

	trades []CompletedTrade
}

// New returns a flat tracker.
func New() *Position {
	return &Position{}
}

// IsFlat reports whether there is no open position.
func (p *Position) IsFlat() bool {
	return !p.open
}

// OpenPosition establishes a new position from an entry fill. stopDistance
// is the absolute distance from entry to the initial stop-loss.
func (p *Position) OpenPosition(direction Direction, fill Fill, stopDistance float64, entryBar int, entryComment string) error {
	if p.open {
		return fmt.Errorf("position: openPosition called while a position is already open")
	}
	p.open = true
	p.direction = direction
	p.entryPrice = fill.Price
	p.size = fill.Size
	p.stopDistance = stopDistance
	p.entryFee = fill.Fee
	p.entryT = fill.T
	p.entryBar = entryBar
	p.entryComment = entryComment
	p.mtmPnL = 0
	p.partialPnL = 0
	p.entryFeeCharged = false
	return nil
}

// UpdateMtm recomputes unrealized PnL at the given mark price for the
// currently open size. No-op when flat.
func (p *Position) UpdateMtm(price float64) {
	if !p.open {
		return
	}
	p.mtmPnL = p.unrealized(price, p.size)
}

func (p *Position) unrealized(price, size float64) float64 {
	if p.direction == Long {
		return (price - p.entryPrice) * size
	}
	return (p.entryPrice - price) * size
}

func (p *Position) rMultiple(pnl, size float64) float64 {
	if p.stopDistance == 0 {
		return 0
	}
	return pnl / (p.stopDistance * size)
}

// PartialClose closes a slice of the open position equal to fill.Size,
// producing a CompletedTrade for that slice and leaving the remainder open.
// Exit commission and slippage are attributed to the slice being closed
// (the fill already carries only that slice's proportional costs); entry
// commission is recorded once, in full, at OpenPosition, and is not
// re-apportioned across partial closes. If this slice happens to be the one
// that exhausts the remaining size, the not-yet-charged entry fee is
// attributed here instead, the same as a final ClosePosition would.
func (p *Position) PartialClose(fill Fill, barIndex int, exitType ExitType, exitComment string) (CompletedTrade, error) {
	if !p.open {
		return CompletedTrade{}, fmt.Errorf("position: partialClose called while flat")
	}
	if fill.Size <= 0 || fill.Size > p.size {
		return CompletedTrade{}, fmt.Errorf("position: partialClose size %v out of range (open size %v)", fill.Size, p.size)
	}

	grossPnL := p.unrealized(fill.Price, fill.Size)
	entryFee := 0.0
	if fill.Size == p.size && !p.entryFeeCharged {
		entryFee = p.entryFee
		p.entryFeeCharged = true
	}
	netPnL := grossPnL - fill.Fee - fill.Slippage - entryFee

	trade := CompletedTrade{
		Direction:    p.direction,
		EntryPrice:   p.entryPrice,
		ExitPrice:    fill.Price,
		EntryT:       p.entryT,
		ExitT:        fill.T,
		EntryBar:     p.entryBar,
		ExitBar:      barIndex,
		HeldBars:     barIndex - p.entryBar,
		Size:         fill.Size,
		PnL:          netPnL,
		PnLPercent:   pnlPercent(netPnL, p.entryPrice, fill.Size),
		RMultiple:    p.rMultiple(netPnL, fill.Size),
		Commission:   fill.Fee + entryFee,
		Slippage:     fill.Slippage,
		ExitType:     exitType,
		EntryComment: p.entryComment,
		ExitComment:  exitComment,
	}

	p.size -= fill.Size
	p.partialPnL += netPnL
	p.trades = append(p.trades, trade)

	if p.size == 0 {
		p.open = false
	}
	return trade, nil
}

// ClosePosition closes the entire remaining open size. The entry commission
// charged at open is attributed to this final slice unless an earlier
// PartialClose already consumed it (entryFeeCharged tracks that explicitly,
// rather than inferring it from whether any prior trades were recorded).
func (p *Position) ClosePosition(fill Fill, barIndex int, exitType ExitType, exitComment string) (CompletedTrade, error) {
	if !p.open {
		return CompletedTrade{}, fmt.Errorf("position: closePosition called while flat")
	}

	grossPnL := p.unrealized(fill.Price, p.size)
	entryFee := 0.0
	if !p.entryFeeCharged {
		entryFee = p.entryFee
		p.entryFeeCharged = true
	}
	netPnL := grossPnL - fill.Fee - fill.Slippage - entryFee

	trade := CompletedTrade{
		Direction:    p.direction,
		EntryPrice:   p.entryPrice,
		ExitPrice:    fill.Price,
		EntryT:       p.entryT,
		ExitT:        fill.T,
		EntryBar:     p.entryBar,
		ExitBar:      barIndex,
		HeldBars:     barIndex - p.entryBar,
		Size:         p.size,
		PnL:          netPnL + p.partialPnL,
		PnLPercent:   pnlPercent(netPnL, p.entryPrice, p.size),
		RMultiple:    p.rMultiple(netPnL, p.size),
		Commission:   fill.Fee + entryFee,
		Slippage:     fill.Slippage,
		ExitType:     exitType,
		EntryComment: p.entryComment,
		ExitComment:  exitComment,
	}

	p.trades = append(p.trades, trade)
	p.open = false
	p.size = 0
	return trade, nil
}

func pnlPercent(netPnL, entryPrice, size float64) float64 {
	notional := entryPrice * size
	if notional == 0 {
		return 0
	}
	return netPnL / notional * 100
}

// GetCompletedTrades returns the accumulating ledger of closed (or
// partially closed) trades, in the order they closed.
func (p *Position) GetCompletedTrades() []CompletedTrade {
	out := make([]CompletedTrade, len(p.trades))
	copy(out, p.trades)
	return out
}

// Direction reports the current open direction; valid only when !IsFlat().
func (p *Position) Direction() Direction { return p.direction }

// EntryPrice reports the current open entry price; valid only when !IsFlat().
func (p *Position) EntryPrice() float64 { return p.entryPrice }

// Size reports the currently open size (0 when flat).
func (p *Position) Size() float64 { return p.size }

// EntryBar reports the bar index the position was opened on.
func (p *Position) EntryBar() int { return p.entryBar }

// MtmPnL reports the last mark-to-market unrealized PnL.
func (p *Position) MtmPnL() float64 { return p.mtmPnL }
