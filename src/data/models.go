package data

import (
	"time"

	"github.com/stake-plus/dao-governance/src/governance"
)

// Unit rows hold one governance unit.
type Unit struct {
	ID                  string        `gorm:"primaryKey;size:64"`
	Authority           string        `gorm:"size:128;not null;index"`
	Name                string        `gorm:"size:255;not null"`
	Treasury            string        `gorm:"size:128;not null"`
	TotalMembers        uint64        `gorm:"not null;default:0"`
	TotalProposals      uint64        `gorm:"not null;default:0"`
	VotingPeriod        time.Duration `gorm:"not null"`
	TimelockDelay       time.Duration `gorm:"not null;default:0"`
	QuorumThresholdBp   uint64        `gorm:"not null"`
	ApprovalThresholdBp uint64        `gorm:"not null"`
	IsActive            bool          `gorm:"not null;default:true"`
	CreatedAt           time.Time
}

func (Unit) TableName() string { return "governance_units" }

// Member rows are keyed by (unit, address).
type Member struct {
	UnitID           string `gorm:"primaryKey;size:64"`
	Address          string `gorm:"primaryKey;size:128"`
	VotingPower      uint64 `gorm:"not null"`
	Delegate         string `gorm:"size:128"`
	ProposalsCreated uint64 `gorm:"not null;default:0"`
	VotesCast        uint64 `gorm:"not null;default:0"`
	IsActive         bool   `gorm:"not null;default:true"`
	JoinedAt         time.Time
}

func (Member) TableName() string { return "governance_members" }

// Proposal rows are keyed by (unit, proposal id).
type Proposal struct {
	UnitID        string `gorm:"primaryKey;size:64"`
	ProposalID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	Proposer      string `gorm:"size:128;not null;index"`
	Title         string `gorm:"size:255;not null"`
	Description   string `gorm:"type:text"`
	ActionKind    string `gorm:"size:32;not null"`
	ActionPayload []byte `gorm:"type:blob;not null"`
	ActionHash    string `gorm:"size:64;not null"`
	YesVotes      uint64 `gorm:"not null;default:0"`
	NoVotes       uint64 `gorm:"not null;default:0"`
	AbstainVotes  uint64 `gorm:"not null;default:0"`
	TotalVotes    uint64 `gorm:"not null;default:0"`
	StartTime     time.Time
	EndTime       time.Time
	QueuedAt      *time.Time
	ExecutedAt    *time.Time
	CancelledAt   *time.Time
	Status        string `gorm:"size:16;not null;index"`
}

func (Proposal) TableName() string { return "governance_proposals" }

// Vote rows are unique per (unit, proposal, voter).
type Vote struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	UnitID      string `gorm:"size:64;not null;uniqueIndex:idx_vote_unique,priority:1"`
	ProposalID  uint64 `gorm:"not null;uniqueIndex:idx_vote_unique,priority:2"`
	Voter       string `gorm:"size:128;not null;uniqueIndex:idx_vote_unique,priority:3"`
	Kind        string `gorm:"size:8;not null"`
	VotingPower uint64 `gorm:"not null"`
	Comment     string `gorm:"type:text"`
	VotedAt     time.Time
}

func (Vote) TableName() string { return "governance_votes" }

// Delegation rows are append-only.
type Delegation struct {
	ID             string `gorm:"primaryKey;size:64"`
	UnitID         string `gorm:"size:64;not null;index:idx_delegation_member,priority:1"`
	Delegator      string `gorm:"size:128;not null;index:idx_delegation_member,priority:2"`
	Delegatee      string `gorm:"size:128;not null"`
	DelegatedPower uint64 `gorm:"not null"`
	CreatedAt      time.Time
}

func (Delegation) TableName() string { return "governance_delegations" }

// TreasuryAccount holds the balance of one ledger account.
type TreasuryAccount struct {
	Address   string `gorm:"primaryKey;size:128"`
	Balance   uint64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (TreasuryAccount) TableName() string { return "treasury_accounts" }

// AllModels lists every table the service owns.
var AllModels = []interface{}{
	&Setting{}, &Unit{}, &Member{}, &Proposal{}, &Vote{}, &Delegation{}, &TreasuryAccount{},
}

func unitRow(u *governance.Unit) Unit {
	return Unit{
		ID:                  u.ID,
		Authority:           u.Authority,
		Name:                u.Name,
		Treasury:            u.Treasury,
		TotalMembers:        u.TotalMembers,
		TotalProposals:      u.TotalProposals,
		VotingPeriod:        u.VotingPeriod,
		TimelockDelay:       u.TimelockDelay,
		QuorumThresholdBp:   u.QuorumThresholdBp,
		ApprovalThresholdBp: u.ApprovalThresholdBp,
		IsActive:            u.IsActive,
		CreatedAt:           u.CreatedAt,
	}
}

func (r Unit) toDomain() *governance.Unit {
	return &governance.Unit{
		ID:             r.ID,
		Authority:      r.Authority,
		Name:           r.Name,
		Treasury:       r.Treasury,
		TotalMembers:   r.TotalMembers,
		TotalProposals: r.TotalProposals,
		Params: governance.Params{
			VotingPeriod:        r.VotingPeriod,
			TimelockDelay:       r.TimelockDelay,
			QuorumThresholdBp:   r.QuorumThresholdBp,
			ApprovalThresholdBp: r.ApprovalThresholdBp,
		},
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}

func memberRow(m *governance.Member) Member {
	return Member{
		UnitID:           m.UnitID,
		Address:          m.Address,
		VotingPower:      m.VotingPower,
		Delegate:         m.Delegate,
		ProposalsCreated: m.ProposalsCreated,
		VotesCast:        m.VotesCast,
		IsActive:         m.IsActive,
		JoinedAt:         m.JoinedAt,
	}
}

func (r Member) toDomain() *governance.Member {
	return &governance.Member{
		UnitID:           r.UnitID,
		Address:          r.Address,
		VotingPower:      r.VotingPower,
		Delegate:         r.Delegate,
		ProposalsCreated: r.ProposalsCreated,
		VotesCast:        r.VotesCast,
		IsActive:         r.IsActive,
		JoinedAt:         r.JoinedAt,
	}
}

func proposalRow(p *governance.Proposal) (Proposal, error) {
	payload, err := governance.EncodeAction(p.Action)
	if err != nil {
		return Proposal{}, err
	}
	return Proposal{
		UnitID:        p.UnitID,
		ProposalID:    p.ID,
		Proposer:      p.Proposer,
		Title:         p.Title,
		Description:   p.Description,
		ActionKind:    string(p.Action.Kind()),
		ActionPayload: payload,
		ActionHash:    p.ActionHash,
		YesVotes:      p.Yes,
		NoVotes:       p.No,
		AbstainVotes:  p.Abstain,
		TotalVotes:    p.Total,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		QueuedAt:      p.QueuedAt,
		ExecutedAt:    p.ExecutedAt,
		CancelledAt:   p.CancelledAt,
		Status:        string(p.Status),
	}, nil
}

func (r Proposal) toDomain() (*governance.Proposal, error) {
	action, err := governance.DecodeAction(governance.ActionKind(r.ActionKind), r.ActionPayload)
	if err != nil {
		return nil, err
	}
	return &governance.Proposal{
		UnitID:      r.UnitID,
		ID:          r.ProposalID,
		Proposer:    r.Proposer,
		Title:       r.Title,
		Description: r.Description,
		Action:      action,
		ActionHash:  r.ActionHash,
		Tally: governance.Tally{
			Yes:     r.YesVotes,
			No:      r.NoVotes,
			Abstain: r.AbstainVotes,
			Total:   r.TotalVotes,
		},
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		QueuedAt:    r.QueuedAt,
		ExecutedAt:  r.ExecutedAt,
		CancelledAt: r.CancelledAt,
		Status:      governance.ProposalStatus(r.Status),
	}, nil
}

func voteRow(v *governance.Vote) Vote {
	return Vote{
		UnitID:      v.UnitID,
		ProposalID:  v.ProposalID,
		Voter:       v.Voter,
		Kind:        string(v.Kind),
		VotingPower: v.VotingPower,
		Comment:     v.Comment,
		VotedAt:     v.VotedAt,
	}
}

func (r Vote) toDomain() *governance.Vote {
	return &governance.Vote{
		UnitID:      r.UnitID,
		ProposalID:  r.ProposalID,
		Voter:       r.Voter,
		Kind:        governance.VoteKind(r.Kind),
		VotingPower: r.VotingPower,
		Comment:     r.Comment,
		VotedAt:     r.VotedAt,
	}
}

func delegationRow(d *governance.Delegation) Delegation {
	return Delegation{
		ID:             d.ID,
		UnitID:         d.UnitID,
		Delegator:      d.Delegator,
		Delegatee:      d.Delegatee,
		DelegatedPower: d.DelegatedPower,
		CreatedAt:      d.CreatedAt,
	}
}
