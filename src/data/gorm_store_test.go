package data

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/dao-governance/src/governance"
	"github.com/stake-plus/dao-governance/src/logging"
)

// openSQLite returns a migrated database on a single connection, so any
// query that escapes the open transaction blocks instead of passing.
func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "governance.db")), &gorm.Config{
		Logger:         logging.NewGormLogger(zap.NewNop(), time.Second),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestGormStoreLifecycleOnFirstProposal(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0).UTC()
	treasury := NewGormTreasury(db)
	engine := governance.New(NewGormStore(db), treasury, nil,
		governance.WithClock(governance.ClockFunc(func() time.Time { return now })))

	u, err := engine.CreateUnit(ctx, "root", governance.NewUnit{
		Name: "council",
		Params: governance.Params{
			VotingPeriod:        100 * time.Second,
			TimelockDelay:       10 * time.Second,
			QuorumThresholdBp:   5000,
			ApprovalThresholdBp: 5000,
		},
	})
	require.NoError(t, err)
	for _, addr := range []string{"alice", "bob"} {
		_, err := engine.AddMember(ctx, "root", u.ID, addr, 1000)
		require.NoError(t, err)
	}
	require.NoError(t, treasury.SetBalance(ctx, u.Treasury, 500))

	p, err := engine.CreateProposal(ctx, "alice", u.ID, governance.NewProposal{
		Title:  "pay carol",
		Action: governance.Transfer{Recipient: "carol", Amount: 200},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), p.ID)

	for _, voter := range []string{"alice", "bob"} {
		_, err := engine.CastVote(ctx, voter, u.ID, p.ID, governance.VoteYes, "")
		require.NoError(t, err)
	}
	_, err = engine.CastVote(ctx, "alice", u.ID, p.ID, governance.VoteNo, "")
	assert.ErrorIs(t, err, governance.ErrDuplicateVote)

	m, err := engine.Member(ctx, u.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.VotesCast)
	assert.Equal(t, uint64(1), m.ProposalsCreated)

	now = now.Add(101 * time.Second)
	p, err = engine.QueueProposal(ctx, "bob", u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusSucceeded, p.Status)

	now = now.Add(10 * time.Second)
	p, err = engine.ExecuteProposal(ctx, "bob", u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusExecuted, p.Status)

	stored, err := engine.Proposal(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusExecuted, stored.Status)
	assert.Equal(t, uint64(2000), stored.Yes)
	assert.NotNil(t, stored.QueuedAt)
	assert.NotNil(t, stored.ExecutedAt)

	unit, err := engine.Unit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), unit.TotalProposals)
	assert.Equal(t, uint64(2), unit.TotalMembers)

	bal, err := treasury.Balance(ctx, u.Treasury)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), bal)
	bal, err = treasury.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(200), bal)
}

func TestGormStoreCancelFirstProposal(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	engine := governance.New(NewGormStore(db), NewGormTreasury(db), nil)

	u, err := engine.CreateUnit(ctx, "root", governance.NewUnit{Name: "council", Params: governance.Params{
		VotingPeriod: time.Hour, QuorumThresholdBp: 1, ApprovalThresholdBp: 1,
	}})
	require.NoError(t, err)
	_, err = engine.AddMember(ctx, "root", u.ID, "alice", 10)
	require.NoError(t, err)
	p, err := engine.CreateProposal(ctx, "alice", u.ID, governance.NewProposal{
		Title:  "remove alice",
		Action: governance.RemoveMember{Member: "alice"},
	})
	require.NoError(t, err)

	p, err = engine.CancelProposal(ctx, "root", u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusCancelled, p.Status)

	list, err := engine.ListProposals(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, governance.StatusCancelled, list[0].Status)
}

func TestGormStoreUniqueVote(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	store := NewGormStore(db)
	v := &governance.Vote{UnitID: "u1", ProposalID: 0, Voter: "alice", Kind: governance.VoteYes, VotingPower: 1, VotedAt: time.Unix(0, 0).UTC()}

	create := func(_ context.Context, tx governance.Tx) error { return tx.CreateVote(v) }
	require.NoError(t, store.Atomic(ctx, "u1", create))
	assert.ErrorIs(t, store.Atomic(ctx, "u1", create), governance.ErrAlreadyExists)

	require.NoError(t, store.View(ctx, "u1", func(_ context.Context, tx governance.Tx) error {
		got, err := tx.LoadVote("u1", 0, "alice")
		if err != nil {
			return err
		}
		assert.Equal(t, governance.VoteYes, got.Kind)
		return nil
	}))
}

func TestGormStoreSaveSemantics(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	store := NewGormStore(db)

	require.NoError(t, store.Atomic(ctx, "u1", func(_ context.Context, tx governance.Tx) error {
		return tx.CreateUnit(testUnit("u1"))
	}))

	// Saving an unchanged row still matches it.
	require.NoError(t, store.Atomic(ctx, "u1", func(_ context.Context, tx governance.Tx) error {
		u, err := tx.LoadUnit("u1")
		if err != nil {
			return err
		}
		return tx.SaveUnit(u)
	}))

	err := store.Atomic(ctx, "u1", func(_ context.Context, tx governance.Tx) error {
		return tx.SaveProposal(&governance.Proposal{
			UnitID: "u1",
			ID:     0,
			Action: governance.Transfer{Recipient: "bob", Amount: 1},
			Status: governance.StatusActive,
		})
	})
	assert.ErrorIs(t, err, governance.ErrNotFound)

	err = store.Atomic(ctx, "u1", func(_ context.Context, tx governance.Tx) error {
		return tx.SaveMember(&governance.Member{UnitID: "u1", Address: "ghost", VotingPower: 1})
	})
	assert.ErrorIs(t, err, governance.ErrNotFound)

	require.NoError(t, store.View(ctx, "u1", func(_ context.Context, tx governance.Tx) error {
		_, err := tx.LoadProposal("u1", 0)
		assert.ErrorIs(t, err, governance.ErrNotFound)
		return nil
	}))
}

func TestGormTreasuryRollsBackWithTransaction(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	store := NewGormStore(db)
	treasury := NewGormTreasury(db)
	require.NoError(t, treasury.SetBalance(ctx, "treasury:u1", 100))

	boom := errors.New("save failed")
	err := store.Atomic(ctx, "u1", func(ctx context.Context, _ governance.Tx) error {
		if err := treasury.Transfer(ctx, "treasury:u1", "carol", 60); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := treasury.Balance(ctx, "treasury:u1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)
	bal, err = treasury.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.Zero(t, bal)

	require.NoError(t, treasury.Transfer(ctx, "treasury:u1", "carol", 60))
	err = treasury.Transfer(ctx, "treasury:u1", "carol", 41)
	assert.ErrorIs(t, err, governance.ErrInsufficientFunds)
	bal, err = treasury.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), bal)
}
