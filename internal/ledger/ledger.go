// Package ledger owns every money-affecting mutation: balances, vaulted
// items, the bounded shipping queue and trade-in cooldowns. Operations on
// one account run inside that account's critical section and either fully
// apply or fully fail.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricehunt/internal/clock"
	"pricehunt/internal/market"
	"pricehunt/internal/store"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrVaultFull             = errors.New("vault is full")
	ErrShippingLimitExceeded = errors.New("shipping queue limit exceeded")
	ErrCooldownActive        = errors.New("trade-in cooldown active")
	ErrVaultItemNotFound     = errors.New("vault item not found")
	ErrShipmentNotFound      = errors.New("shipment not found")

	// ErrInternalInconsistency means an invariant broke despite the
	// preconditions. It indicates a bug, never a user mistake.
	ErrInternalInconsistency = errors.New("internal ledger inconsistency")
)

type Config struct {
	VaultCap              int
	ShippingCap           int
	TradeInCooldown       time.Duration
	StartingBalanceMicros int64
}

func DefaultConfig() Config {
	return Config{
		VaultCap:              20,
		ShippingCap:           3,
		TradeInCooldown:       60 * time.Second,
		StartingBalanceMicros: 500 * market.MicrosPerCoin,
	}
}

type VaultItem struct {
	ID              string      `json:"id"`
	Item            market.Item `json:"item"`
	PricePaidMicros int64       `json:"price_paid_micros"`
	PurchasedAt     time.Time   `json:"purchased_at"`
}

type ShippingEntry struct {
	ShippingID string `json:"shipping_id"`
	VaultItem
}

type WalletView struct {
	BalanceMicros int64           `json:"balance_micros"`
	Vault         []VaultItem     `json:"vault"`
	Shipping      []ShippingEntry `json:"shipping"`
}

type account struct {
	mu            sync.Mutex
	balanceMicros int64
	vault         []VaultItem
	shipping      []ShippingEntry
}

type Service struct {
	log   *slog.Logger
	clock clock.Clock
	store store.Store
	cfg   Config

	mu       sync.Mutex
	accounts map[string]*account
}

func NewService(cfg Config, clk clock.Clock, st store.Store, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System()
	}
	if st == nil {
		st = store.NewMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		log:      logger,
		clock:    clk,
		store:    st,
		cfg:      cfg,
		accounts: make(map[string]*account),
	}
}

// EnsureAccount provisions the account with the starting balance if it
// does not exist yet.
func (s *Service) EnsureAccount(userID string) {
	s.account(userID)
}

func (s *Service) account(userID string) *account {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		acc = &account{balanceMicros: s.cfg.StartingBalanceMicros}
		s.accounts[userID] = acc
	}
	return acc
}

// DebitAndVault debits the purchase price and appends the item to the
// vault. Both invariants are checked before anything mutates, so a
// rejection leaves the account untouched.
func (s *Service) DebitAndVault(ctx context.Context, userID string, item market.Item, priceMicros int64) (VaultItem, error) {
	if priceMicros <= 0 {
		return VaultItem{}, fmt.Errorf("purchase price must be > 0")
	}
	acc := s.account(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if acc.balanceMicros < priceMicros {
		return VaultItem{}, fmt.Errorf("%w: balance %d, price %d", ErrInsufficientBalance, acc.balanceMicros, priceMicros)
	}
	if len(acc.vault) >= s.cfg.VaultCap {
		return VaultItem{}, ErrVaultFull
	}

	acc.balanceMicros -= priceMicros
	if acc.balanceMicros < 0 {
		acc.balanceMicros += priceMicros
		s.log.Error("balance went negative after a guarded debit", "user_id", userID)
		return VaultItem{}, ErrInternalInconsistency
	}
	v := VaultItem{
		ID:              uuid.NewString(),
		Item:            item,
		PricePaidMicros: priceMicros,
		PurchasedAt:     s.clock.Now(),
	}
	acc.vault = append(acc.vault, v)
	s.audit(ctx, store.LedgerEntry{
		UserID:        userID,
		Action:        "purchase",
		ItemID:        item.ID,
		AmountMicros:  -priceMicros,
		BalanceMicros: acc.balanceMicros,
		At:            v.PurchasedAt,
	})
	return v, nil
}

// TradeIn removes a vaulted item and credits the supplied valuation. The
// ledger never computes item value; callers price the trade-in.
func (s *Service) TradeIn(ctx context.Context, userID, vaultItemID string, valueMicros int64) (int64, error) {
	if valueMicros < 0 {
		return 0, fmt.Errorf("trade-in value must be >= 0")
	}
	acc := s.account(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	idx := -1
	for i, v := range acc.vault {
		if v.ID == vaultItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, ErrVaultItemNotFound
	}
	held := s.clock.Now().Sub(acc.vault[idx].PurchasedAt)
	if held < s.cfg.TradeInCooldown {
		return 0, fmt.Errorf("%w: %s remaining", ErrCooldownActive, s.cfg.TradeInCooldown-held)
	}

	itemID := acc.vault[idx].Item.ID
	acc.vault = append(acc.vault[:idx], acc.vault[idx+1:]...)
	acc.balanceMicros += valueMicros
	s.audit(ctx, store.LedgerEntry{
		UserID:        userID,
		Action:        "trade_in",
		ItemID:        itemID,
		AmountMicros:  valueMicros,
		BalanceMicros: acc.balanceMicros,
		At:            s.clock.Now(),
	})
	return acc.balanceMicros, nil
}

// MoveToShipping moves a batch of vault items into the shipping queue.
// The move is atomic: if the batch would push the queue past the cap, or
// any id is missing, nothing moves.
func (s *Service) MoveToShipping(ctx context.Context, userID string, vaultItemIDs []string) ([]ShippingEntry, error) {
	if len(vaultItemIDs) == 0 {
		return nil, fmt.Errorf("no vault items given")
	}
	acc := s.account(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if len(acc.shipping)+len(vaultItemIDs) > s.cfg.ShippingCap {
		return nil, fmt.Errorf("%w: queue %d + batch %d > cap %d",
			ErrShippingLimitExceeded, len(acc.shipping), len(vaultItemIDs), s.cfg.ShippingCap)
	}

	indexes := make([]int, 0, len(vaultItemIDs))
	seen := make(map[string]bool, len(vaultItemIDs))
	for _, id := range vaultItemIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate id %s in batch", ErrVaultItemNotFound, id)
		}
		seen[id] = true
		idx := -1
		for i, v := range acc.vault {
			if v.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrVaultItemNotFound
		}
		indexes = append(indexes, idx)
	}

	moved := make([]ShippingEntry, 0, len(indexes))
	for _, idx := range indexes {
		moved = append(moved, ShippingEntry{
			ShippingID: uuid.NewString(),
			VaultItem:  acc.vault[idx],
		})
	}
	remaining := acc.vault[:0]
	for _, v := range acc.vault {
		if !seen[v.ID] {
			remaining = append(remaining, v)
		}
	}
	acc.vault = remaining
	acc.shipping = append(acc.shipping, moved...)
	now := s.clock.Now()
	for _, entry := range moved {
		s.audit(ctx, store.LedgerEntry{
			UserID:        userID,
			Action:        "ship_queue",
			ItemID:        entry.Item.ID,
			AmountMicros:  0,
			BalanceMicros: acc.balanceMicros,
			At:            now,
		})
	}
	return moved, nil
}

// RecallFromShipping returns one unconfirmed shipment to the vault.
// Always allowed before confirmation; the vault cap is not re-checked
// because the item never stopped counting against the player's holdings.
func (s *Service) RecallFromShipping(ctx context.Context, userID, shippingID string) (VaultItem, error) {
	acc := s.account(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	for i, entry := range acc.shipping {
		if entry.ShippingID == shippingID {
			acc.shipping = append(acc.shipping[:i], acc.shipping[i+1:]...)
			acc.vault = append(acc.vault, entry.VaultItem)
			s.audit(ctx, store.LedgerEntry{
				UserID:        userID,
				Action:        "ship_recall",
				ItemID:        entry.Item.ID,
				AmountMicros:  0,
				BalanceMicros: acc.balanceMicros,
				At:            s.clock.Now(),
			})
			return entry.VaultItem, nil
		}
	}
	return VaultItem{}, ErrShipmentNotFound
}

// ConfirmShipment clears the whole queue. Terminal: confirmed items can
// never re-enter the vault.
func (s *Service) ConfirmShipment(ctx context.Context, userID string) (int, error) {
	acc := s.account(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	shipped := len(acc.shipping)
	now := s.clock.Now()
	for _, entry := range acc.shipping {
		s.audit(ctx, store.LedgerEntry{
			UserID:        userID,
			Action:        "ship_confirm",
			ItemID:        entry.Item.ID,
			AmountMicros:  0,
			BalanceMicros: acc.balanceMicros,
			At:            now,
		})
	}
	acc.shipping = nil
	return shipped, nil
}

func (s *Service) Balance(userID string) int64 {
	acc := s.account(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balanceMicros
}

func (s *Service) Wallet(userID string) WalletView {
	acc := s.account(userID)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	out := WalletView{
		BalanceMicros: acc.balanceMicros,
		Vault:         make([]VaultItem, len(acc.vault)),
		Shipping:      make([]ShippingEntry, len(acc.shipping)),
	}
	copy(out.Vault, acc.vault)
	copy(out.Shipping, acc.shipping)
	return out
}

// Audit failures never fail the business operation; the store is an
// observer, not a participant.
func (s *Service) audit(ctx context.Context, entry store.LedgerEntry) {
	if err := s.store.AppendLedgerEntry(ctx, entry); err != nil {
		s.log.Error("ledger audit append failed", "action", entry.Action, "err", err)
	}
}
