// Package store is the persistence collaborator behind the in-memory
// economy: an append-only sink for ledger audit entries and simulated
// price series. The game never reads its own state back from here; the
// store exists for audit and offline analysis.
package store

import (
	"context"
	"time"
)

type LedgerEntry struct {
	UserID        string    `json:"user_id"`
	Action        string    `json:"action"`
	ItemID        string    `json:"item_id,omitempty"`
	AmountMicros  int64     `json:"amount_micros"`
	BalanceMicros int64     `json:"balance_micros"`
	At            time.Time `json:"at"`
}

type PricePoint struct {
	ItemID      string    `json:"item_id"`
	PriceMicros int64     `json:"price_micros"`
	At          time.Time `json:"at"`
}

type Store interface {
	AppendLedgerEntry(ctx context.Context, entry LedgerEntry) error
	AppendPricePoints(ctx context.Context, points []PricePoint) error
}
