package governance

import (
	"context"
	"time"
)

// Store persists governance records. Atomic serializes all work on one unit:
// mutations made through tx are committed only when fn returns nil, and
// nothing is written otherwise. View reads committed records without
// taking the unit lock; fn must not write through its tx.
type Store interface {
	Atomic(ctx context.Context, unitID string, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, unitID string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the record access available inside a Store transaction. Create
// methods fail with ErrAlreadyExists on key collision and Load methods
// with ErrNotFound when the record is absent.
type Tx interface {
	CreateUnit(u *Unit) error
	LoadUnit(id string) (*Unit, error)
	SaveUnit(u *Unit) error

	CreateMember(m *Member) error
	LoadMember(unitID, address string) (*Member, error)
	SaveMember(m *Member) error

	CreateProposal(p *Proposal) error
	LoadProposal(unitID string, id uint64) (*Proposal, error)
	SaveProposal(p *Proposal) error
	ListProposals(unitID string) ([]Proposal, error)

	CreateVote(v *Vote) error
	LoadVote(unitID string, proposalID uint64, voter string) (*Vote, error)

	CreateDelegation(d *Delegation) error
}

// Transferer moves value between accounts. It returns ErrInsufficientFunds
// when the source cannot cover amount.
type Transferer interface {
	Transfer(ctx context.Context, from, to string, amount uint64) error
}

// CustomCall is the opaque payload handed to a custom target.
type CustomCall struct {
	UnitID     string
	ProposalID uint64
	Target     string
	Data       []byte
}

// CustomTarget delivers custom actions to external programs.
type CustomTarget interface {
	Call(ctx context.Context, call CustomCall) error
}

// Clock is the trusted time source. The engine reads it once per operation.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads wall time in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// Recorder observes operation outcomes; code is empty on success.
type Recorder interface {
	ObserveOperation(op string, code Code, elapsed time.Duration)
	ObserveVote(kind VoteKind, power uint64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, Code, time.Duration) {}
func (nopRecorder) ObserveVote(VoteKind, uint64)                 {}
