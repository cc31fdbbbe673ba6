// Package shot turns a "take shot" request into a price capture and, on
// commit, into a ledger transaction. A capture never touches the ledger;
// a snapshot settles at most once.
package shot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricehunt/internal/clock"
	"pricehunt/internal/ledger"
	"pricehunt/internal/market"
	"pricehunt/internal/ratelimit"
)

var (
	ErrRateLimited      = errors.New("shot rate limit exceeded")
	ErrSnapshotNotFound = errors.New("capture snapshot not found")
	ErrAlreadySettled   = errors.New("capture already settled")
	ErrInvalidSelection = errors.New("selected price was not captured")
	ErrUnknownMode      = errors.New("unknown capture mode")
)

type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

const multiDraws = 3

type Snapshot struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ItemID       string    `json:"item_id"`
	PricesMicros []int64   `json:"prices_micros"`
	CapturedAt   time.Time `json:"captured_at"`
}

type SettlementResult struct {
	Committed     bool             `json:"committed"`
	VaultItem     ledger.VaultItem `json:"vault_item,omitempty"`
	BalanceMicros int64            `json:"balance_micros"`
}

type tracked struct {
	Snapshot
	settled bool
}

type Pipeline struct {
	log     *slog.Logger
	clock   clock.Clock
	market  *market.Engine
	ledger  *ledger.Service
	limiter *ratelimit.Limiter

	shotLimitPerMinute int

	mu        sync.Mutex
	snapshots map[string]*tracked
}

func NewPipeline(eng *market.Engine, led *ledger.Service, lim *ratelimit.Limiter, clk clock.Clock, logger *slog.Logger, shotLimitPerMinute int) *Pipeline {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		log:                logger,
		clock:              clk,
		market:             eng,
		ledger:             led,
		limiter:            lim,
		shotLimitPerMinute: shotLimitPerMinute,
		snapshots:          make(map[string]*tracked),
	}
}

// Capture snapshots the item's price. Single mode reads the live price as
// is; multi mode advances the simulation three times so the player gets
// three independently drawn options. No ledger effect either way.
func (p *Pipeline) Capture(userID, itemID string, mode Mode) (Snapshot, error) {
	if !p.limiter.Allow(userID, "shot", p.shotLimitPerMinute) {
		return Snapshot{}, ErrRateLimited
	}

	var prices []int64
	switch mode {
	case ModeSingle:
		price, err := p.market.CurrentPrice(itemID)
		if err != nil {
			return Snapshot{}, err
		}
		prices = []int64{price}
	case ModeMulti:
		prices = make([]int64, 0, multiDraws)
		for i := 0; i < multiDraws; i++ {
			price, err := p.market.Tick(itemID)
			if err != nil {
				return Snapshot{}, err
			}
			prices = append(prices, price)
		}
	default:
		return Snapshot{}, ErrUnknownMode
	}

	snap := Snapshot{
		ID:           uuid.NewString(),
		UserID:       userID,
		ItemID:       itemID,
		PricesMicros: prices,
		CapturedAt:   p.clock.Now(),
	}
	p.mu.Lock()
	p.snapshots[snap.ID] = &tracked{Snapshot: snap}
	p.mu.Unlock()
	return snap, nil
}

// Commit settles a snapshot into a purchase at one of its captured
// prices. The price comes from the client, so it is validated against
// the captured set before the ledger sees it.
func (p *Pipeline) Commit(ctx context.Context, userID, snapshotID string, selectedPriceMicros int64) (SettlementResult, error) {
	snap, err := p.claim(userID, snapshotID, selectedPriceMicros, true)
	if err != nil {
		return SettlementResult{}, err
	}

	detail, err := p.market.Detail(snap.ItemID)
	if err != nil {
		return SettlementResult{}, err
	}
	v, err := p.ledger.DebitAndVault(ctx, userID, detail.Item, selectedPriceMicros)
	if err != nil {
		// The decision did not consume the snapshot; the player can
		// still discard or retry after freeing balance.
		p.release(snapshotID)
		return SettlementResult{}, err
	}
	return SettlementResult{
		Committed:     true,
		VaultItem:     v,
		BalanceMicros: p.ledger.Balance(userID),
	}, nil
}

// Discard drops a snapshot with no ledger effect.
func (p *Pipeline) Discard(userID, snapshotID string) error {
	_, err := p.claim(userID, snapshotID, 0, false)
	return err
}

// claim marks the snapshot settled and returns it. The commit path
// validates the selected price against the captured set; discard has no
// price to validate.
func (p *Pipeline) claim(userID, snapshotID string, selectedPriceMicros int64, validatePrice bool) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tr, ok := p.snapshots[snapshotID]
	if !ok || tr.UserID != userID {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if tr.settled {
		return Snapshot{}, ErrAlreadySettled
	}
	if validatePrice {
		valid := false
		for _, price := range tr.PricesMicros {
			if price == selectedPriceMicros {
				valid = true
				break
			}
		}
		if !valid {
			return Snapshot{}, ErrInvalidSelection
		}
	}
	tr.settled = true
	return tr.Snapshot, nil
}

func (p *Pipeline) release(snapshotID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tr, ok := p.snapshots[snapshotID]; ok {
		tr.settled = false
	}
}
