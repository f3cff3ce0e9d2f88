package data

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/dao-governance/src/governance"
)

// GormTreasury keeps account balances in the treasury_accounts table.
// Inside a governance transaction it joins the open transaction.
type GormTreasury struct {
	db *gorm.DB
}

// NewGormTreasury wraps db.
func NewGormTreasury(db *gorm.DB) *GormTreasury {
	return &GormTreasury{db: db}
}

// Transfer moves amount from one account to another.
func (t *GormTreasury) Transfer(ctx context.Context, from, to string, amount uint64) error {
	db := dbFrom(ctx, t.db)
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return transfer(db, from, to, amount)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		return transfer(tx, from, to, amount)
	})
}

func transfer(tx *gorm.DB, from, to string, amount uint64) error {
	var src TreasuryAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&src, "address = ?", from).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return governance.NewError(governance.CodeInsufficientFunds, "treasury %s has no balance", from)
	case err != nil:
		return err
	}
	if src.Balance < amount {
		return governance.NewError(governance.CodeInsufficientFunds,
			"treasury %s holds %d, transfer needs %d", from, src.Balance, amount)
	}
	if from == to {
		return nil
	}

	var dst TreasuryAccount
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", to).Limit(1).Find(&dst).Error
	if err != nil {
		return err
	}
	if dst.Balance > math.MaxUint64-amount {
		return governance.NewError(governance.CodeDispatchFailed, "balance of %s would overflow", to)
	}

	now := time.Now().UTC()
	if err := tx.Model(&src).Updates(map[string]any{
		"balance":    src.Balance - amount,
		"updated_at": now,
	}).Error; err != nil {
		return err
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]any{"balance": dst.Balance + amount, "updated_at": now}),
	}).Create(&TreasuryAccount{Address: to, Balance: dst.Balance + amount, UpdatedAt: now}).Error
}

// SetBalance overwrites the balance of address.
func (t *GormTreasury) SetBalance(ctx context.Context, address string, balance uint64) error {
	return t.db.WithContext(ctx).Save(&TreasuryAccount{
		Address:   address,
		Balance:   balance,
		UpdatedAt: time.Now().UTC(),
	}).Error
}

// Balance returns the balance of address, zero for unknown accounts.
func (t *GormTreasury) Balance(ctx context.Context, address string) (uint64, error) {
	var acc TreasuryAccount
	err := t.db.WithContext(ctx).Where("address = ?", address).Limit(1).Find(&acc).Error
	return acc.Balance, err
}

// MemoryTreasury is an in-process ledger.
type MemoryTreasury struct {
	mu       sync.Mutex
	balances map[string]uint64
}

// NewMemoryTreasury returns a ledger seeded with balances.
func NewMemoryTreasury(balances map[string]uint64) *MemoryTreasury {
	t := &MemoryTreasury{balances: make(map[string]uint64, len(balances))}
	for k, v := range balances {
		t.balances[k] = v
	}
	return t
}

func (t *MemoryTreasury) Transfer(_ context.Context, from, to string, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	have := t.balances[from]
	if have < amount {
		return governance.NewError(governance.CodeInsufficientFunds,
			"treasury %s holds %d, transfer needs %d", from, have, amount)
	}
	if from == to {
		return nil
	}
	if t.balances[to] > math.MaxUint64-amount {
		return governance.NewError(governance.CodeDispatchFailed, "balance of %s would overflow", to)
	}
	t.balances[from] = have - amount
	t.balances[to] += amount
	return nil
}

func (t *MemoryTreasury) SetBalance(_ context.Context, address string, balance uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[address] = balance
	return nil
}

func (t *MemoryTreasury) Balance(_ context.Context, address string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[address], nil
}
