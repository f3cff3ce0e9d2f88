package data

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/dao-governance/src/governance"
	"github.com/stake-plus/dao-governance/src/logging"
)

type txKey struct{}

// WithTx returns ctx carrying an open transaction.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// dbFrom returns the transaction carried by ctx, or fallback.
func dbFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return fallback.WithContext(ctx)
}

// GormStore persists governance records in MySQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Atomic runs fn in one database transaction. The unit row is locked
// FOR UPDATE first so operations on the same unit serialize.
func (s *GormStore) Atomic(ctx context.Context, unitID string, fn func(ctx context.Context, tx governance.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []Unit
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", unitID).Limit(1).Find(&locked).Error; err != nil {
			return err
		}
		return fn(WithTx(ctx, tx), gormTx{db: tx})
	})
}

// View runs fn against committed rows without locking the unit. fn must
// not write.
func (s *GormStore) View(ctx context.Context, unitID string, fn func(ctx context.Context, tx governance.Tx) error) error {
	return fn(ctx, gormTx{db: s.db.WithContext(ctx)})
}

type gormTx struct {
	db *gorm.DB
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &governance.Error{Code: governance.CodeNotFound, Message: what + " not found"}
	case logging.IsDuplicateEntry(err):
		return &governance.Error{Code: governance.CodeAlreadyExists, Message: what + " already exists", Err: err}
	default:
		return err
	}
}

// update overwrites every non-key column of the row matched by where.
// Save would insert instead when a key column is zero, as with proposal 0.
func (t gormTx) update(row any, what, where string, args ...any) error {
	res := t.db.Model(row).Where(where, args...).Select("*").Updates(row)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return &governance.Error{Code: governance.CodeNotFound, Message: what + " not found"}
	}
	return nil
}

func (t gormTx) CreateUnit(u *governance.Unit) error {
	row := unitRow(u)
	return translate(t.db.Create(&row).Error, "unit "+u.ID)
}

func (t gormTx) LoadUnit(id string) (*governance.Unit, error) {
	var row Unit
	if err := t.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err, "unit "+id)
	}
	return row.toDomain(), nil
}

func (t gormTx) SaveUnit(u *governance.Unit) error {
	row := unitRow(u)
	return t.update(&row, "unit "+u.ID, "id = ?", u.ID)
}

func (t gormTx) CreateMember(m *governance.Member) error {
	row := memberRow(m)
	return translate(t.db.Create(&row).Error, "member "+m.Address)
}

func (t gormTx) LoadMember(unitID, address string) (*governance.Member, error) {
	var row Member
	if err := t.db.First(&row, "unit_id = ? AND address = ?", unitID, address).Error; err != nil {
		return nil, translate(err, "member "+address)
	}
	return row.toDomain(), nil
}

func (t gormTx) SaveMember(m *governance.Member) error {
	row := memberRow(m)
	return t.update(&row, "member "+m.Address, "unit_id = ? AND address = ?", m.UnitID, m.Address)
}

func (t gormTx) CreateProposal(p *governance.Proposal) error {
	row, err := proposalRow(p)
	if err != nil {
		return err
	}
	return translate(t.db.Create(&row).Error, "proposal")
}

func (t gormTx) LoadProposal(unitID string, id uint64) (*governance.Proposal, error) {
	var row Proposal
	if err := t.db.First(&row, "unit_id = ? AND proposal_id = ?", unitID, id).Error; err != nil {
		return nil, translate(err, "proposal")
	}
	return row.toDomain()
}

func (t gormTx) SaveProposal(p *governance.Proposal) error {
	row, err := proposalRow(p)
	if err != nil {
		return err
	}
	return t.update(&row, "proposal", "unit_id = ? AND proposal_id = ?", p.UnitID, p.ID)
}

func (t gormTx) ListProposals(unitID string) ([]governance.Proposal, error) {
	var rows []Proposal
	if err := t.db.Where("unit_id = ?", unitID).Order("proposal_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]governance.Proposal, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (t gormTx) CreateVote(v *governance.Vote) error {
	row := voteRow(v)
	return translate(t.db.Create(&row).Error, "vote by "+v.Voter)
}

func (t gormTx) LoadVote(unitID string, proposalID uint64, voter string) (*governance.Vote, error) {
	var row Vote
	err := t.db.First(&row, "unit_id = ? AND proposal_id = ? AND voter = ?", unitID, proposalID, voter).Error
	if err != nil {
		return nil, translate(err, "vote by "+voter)
	}
	return row.toDomain(), nil
}

func (t gormTx) CreateDelegation(d *governance.Delegation) error {
	row := delegationRow(d)
	return translate(t.db.Create(&row).Error, "delegation "+d.ID)
}
