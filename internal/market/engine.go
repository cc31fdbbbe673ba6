// Package market runs the per-item price simulation. Each tracked item
// carries a live price driven by a hidden trend state machine; prices stay
// inside [1 coin, marketPrice*1.1] and every tick lands in a fixed-depth
// history ring for charting.
package market

import (
	"errors"
	"log/slog"
	"math"
	mathrand "math/rand"
	"sort"
	"sync"
	"time"

	"pricehunt/internal/clock"
)

const MicrosPerCoin = int64(1_000_000)

const (
	DefaultHistoryDepth = 64

	safeZoneDiscount = 0.10
	deepDiscount     = 0.60

	// Anti-stall: deep discounts are forced back into a climb so no item
	// can be sniped indefinitely at the bottom.
	stallDiscountFast   = 0.50
	stallForceAfterFast = time.Second
	stallDiscountSlow   = 0.40
	stallForceAfterSlow = 2 * time.Second
	diveEntryChance     = 0.10
	diveFlipChance      = 0.20
	viewGrace           = 5 * time.Second
	swingBase           = 0.30
	swingSpan           = 0.40
	stableAmplitude     = 0.05
)

type TrendMode string

const (
	ModeStable   TrendMode = "stable"
	ModeDiving   TrendMode = "diving"
	ModeClimbing TrendMode = "climbing"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrDuplicateItem = errors.New("item already tracked")
)

type Item struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	MarketPriceMicros int64  `json:"market_price_micros"`
}

type PricePoint struct {
	At          time.Time `json:"at"`
	PriceMicros int64     `json:"price_micros"`
}

type ItemView struct {
	Item
	CurrentPriceMicros int64        `json:"current_price_micros"`
	History            []PricePoint `json:"history,omitempty"`
}

type Update struct {
	ItemID      string    `json:"item_id"`
	PriceMicros int64     `json:"price_micros"`
	At          time.Time `json:"at"`
}

type trendState struct {
	mode           TrendMode
	stepsRemaining int
	changedAt      time.Time
}

type itemState struct {
	mu          sync.Mutex
	item        Item
	priceMicros int64
	history     []PricePoint
	trend       trendState
	viewedSince time.Time // zero while nobody is watching
}

// Engine owns all per-item simulation state. Ticks on different items may
// run concurrently; ticks on one item are serialized by that item's lock.
type Engine struct {
	log          *slog.Logger
	clock        clock.Clock
	historyDepth int

	mu    sync.RWMutex
	items map[string]*itemState

	randMu sync.Mutex
	rand   *mathrand.Rand
}

func NewEngine(clk clock.Clock, logger *slog.Logger, historyDepth int) *Engine {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if historyDepth <= 0 {
		historyDepth = DefaultHistoryDepth
	}
	return &Engine{
		log:          logger,
		clock:        clk,
		historyDepth: historyDepth,
		items:        make(map[string]*itemState),
		rand:         mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

func (e *Engine) Track(item Item) error {
	if item.ID == "" || item.MarketPriceMicros < MicrosPerCoin {
		return errors.New("item needs an id and a market price of at least one coin")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.items[item.ID]; ok {
		return ErrDuplicateItem
	}
	now := e.clock.Now()
	st := &itemState{
		item:        item,
		priceMicros: item.MarketPriceMicros,
		history:     make([]PricePoint, 0, e.historyDepth),
		trend:       trendState{mode: ModeStable, changedAt: now},
	}
	st.history = append(st.history, PricePoint{At: now, PriceMicros: st.priceMicros})
	e.items[item.ID] = st
	return nil
}

func (e *Engine) get(itemID string) (*itemState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	return st, nil
}

// Tick advances one item by one simulation step and returns the new price.
func (e *Engine) Tick(itemID string) (int64, error) {
	st, err := e.get(itemID)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return e.tickLocked(st, e.clock.Now()), nil
}

// TickAll advances every tracked item once and returns the update batch,
// ordered by item id so broadcasts are stable.
func (e *Engine) TickAll() []Update {
	e.mu.RLock()
	states := make([]*itemState, 0, len(e.items))
	for _, st := range e.items {
		states = append(states, st)
	}
	e.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool { return states[i].item.ID < states[j].item.ID })

	out := make([]Update, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		now := e.clock.Now()
		price := e.tickLocked(st, now)
		st.mu.Unlock()
		out = append(out, Update{ItemID: st.item.ID, PriceMicros: price, At: now})
	}
	return out
}

func (e *Engine) tickLocked(st *itemState, now time.Time) int64 {
	market := st.item.MarketPriceMicros
	discount := float64(market-st.priceMicros) / float64(market)

	switch {
	case discount > stallDiscountFast && now.Sub(st.trend.changedAt) > stallForceAfterFast:
		e.enterMode(st, ModeClimbing, now)
	case discount > stallDiscountSlow && now.Sub(st.trend.changedAt) > stallForceAfterSlow:
		e.enterMode(st, ModeClimbing, now)
	case discount < safeZoneDiscount && st.trend.mode != ModeDiving:
		// Fresh viewers get a grace period before a dive can start, so a
		// just-opened view cannot be front-run.
		fresh := !st.viewedSince.IsZero() && now.Sub(st.viewedSince) < viewGrace
		if !fresh && e.nextFloat() < diveEntryChance {
			e.enterMode(st, ModeDiving, now)
		}
	}

	var change float64
	switch st.trend.mode {
	case ModeDiving:
		span := swingBase + swingSpan*e.nextFloat()
		change = -span * e.nextFloat()
	case ModeClimbing:
		span := swingBase + swingSpan*e.nextFloat()
		change = span * e.nextFloat()
	default:
		change = (e.nextFloat() - 0.5) * 2 * stableAmplitude
	}

	st.priceMicros = clampPrice(applyChange(st.priceMicros, change), market)
	discount = float64(market-st.priceMicros) / float64(market)

	switch st.trend.mode {
	case ModeDiving:
		if discount > deepDiscount || e.nextFloat() < diveFlipChance {
			e.enterMode(st, ModeClimbing, now)
		} else if st.trend.stepsRemaining--; st.trend.stepsRemaining <= 0 {
			e.enterMode(st, ModeStable, now)
		}
	case ModeClimbing:
		if discount < safeZoneDiscount {
			e.enterMode(st, ModeStable, now)
		} else if st.trend.stepsRemaining--; st.trend.stepsRemaining <= 0 {
			e.enterMode(st, ModeStable, now)
		}
	}

	e.appendHistory(st, PricePoint{At: now, PriceMicros: st.priceMicros})
	return st.priceMicros
}

func (e *Engine) enterMode(st *itemState, mode TrendMode, now time.Time) {
	if st.trend.mode == mode {
		return
	}
	st.trend = trendState{
		mode:           mode,
		stepsRemaining: 4 + e.nextIntN(8),
		changedAt:      now,
	}
}

func (e *Engine) appendHistory(st *itemState, p PricePoint) {
	if len(st.history) == e.historyDepth {
		copy(st.history, st.history[1:])
		st.history[len(st.history)-1] = p
		return
	}
	st.history = append(st.history, p)
}

func applyChange(priceMicros int64, change float64) int64 {
	return int64(math.Round(float64(priceMicros) * (1 + change)))
}

func clampPrice(priceMicros, marketMicros int64) int64 {
	max := marketMicros + marketMicros/10
	if priceMicros < MicrosPerCoin {
		return MicrosPerCoin
	}
	if priceMicros > max {
		return max
	}
	return priceMicros
}

// StartViewing marks the item as being watched from now; the timestamp
// feeds the dive-suppression grace window. Re-opening resets it.
func (e *Engine) StartViewing(itemID string) error {
	st, err := e.get(itemID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.viewedSince = e.clock.Now()
	st.mu.Unlock()
	return nil
}

func (e *Engine) StopViewing(itemID string) error {
	st, err := e.get(itemID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.viewedSince = time.Time{}
	st.mu.Unlock()
	return nil
}

func (e *Engine) CurrentPrice(itemID string) (int64, error) {
	st, err := e.get(itemID)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.priceMicros, nil
}

// Detail returns the item with its full history ring, oldest first.
func (e *Engine) Detail(itemID string) (ItemView, error) {
	st, err := e.get(itemID)
	if err != nil {
		return ItemView{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	history := make([]PricePoint, len(st.history))
	copy(history, st.history)
	return ItemView{Item: st.item, CurrentPriceMicros: st.priceMicros, History: history}, nil
}

// Items lists all tracked items without history, ordered by id.
func (e *Engine) Items() []ItemView {
	e.mu.RLock()
	states := make([]*itemState, 0, len(e.items))
	for _, st := range e.items {
		states = append(states, st)
	}
	e.mu.RUnlock()

	out := make([]ItemView, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, ItemView{Item: st.item, CurrentPriceMicros: st.priceMicros})
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reseed makes subsequent draws reproducible. Used by the offline
// simulator so a tuning run can be repeated exactly.
func (e *Engine) Reseed(seed int64) {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	e.rand = mathrand.New(mathrand.NewSource(seed))
}

func (e *Engine) nextFloat() float64 {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Float64()
}

func (e *Engine) nextIntN(n int) int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Intn(n)
}
