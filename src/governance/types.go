package governance

import "time"

// MaxBasisPoints is 100% on the basis-point scale.
const MaxBasisPoints = 10000

// ReferencePowerPerMember is the fixed weight each registered member
// contributes to the quorum denominator.
const ReferencePowerPerMember = 1000

// ProposalStatus is the lifecycle state of a proposal.
type ProposalStatus string

const (
	StatusActive    ProposalStatus = "active"
	StatusSucceeded ProposalStatus = "succeeded"
	StatusDefeated  ProposalStatus = "defeated"
	StatusExecuted  ProposalStatus = "executed"
	StatusCancelled ProposalStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s ProposalStatus) Terminal() bool {
	switch s {
	case StatusDefeated, StatusExecuted, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s ProposalStatus) Valid() bool {
	switch s {
	case StatusActive, StatusSucceeded, StatusDefeated, StatusExecuted, StatusCancelled:
		return true
	}
	return false
}

// VoteKind is the choice recorded on a vote.
type VoteKind string

const (
	VoteYes     VoteKind = "yes"
	VoteNo      VoteKind = "no"
	VoteAbstain VoteKind = "abstain"
)

// Valid reports whether k is a known vote kind.
func (k VoteKind) Valid() bool {
	switch k {
	case VoteYes, VoteNo, VoteAbstain:
		return true
	}
	return false
}

// Params are the tunable rules of a governance unit.
type Params struct {
	VotingPeriod        time.Duration
	TimelockDelay       time.Duration
	QuorumThresholdBp   uint64
	ApprovalThresholdBp uint64
}

// Validate checks the parameter bounds.
func (p Params) Validate() error {
	if p.VotingPeriod <= 0 {
		return errorf(CodeInvalidParameter, "voting period must be positive")
	}
	if p.TimelockDelay < 0 {
		return errorf(CodeInvalidParameter, "timelock delay must not be negative")
	}
	if err := validateBasisPoints("quorum threshold", p.QuorumThresholdBp); err != nil {
		return err
	}
	return validateBasisPoints("approval threshold", p.ApprovalThresholdBp)
}

func validateBasisPoints(name string, bp uint64) error {
	if bp == 0 || bp > MaxBasisPoints {
		return errorf(CodeInvalidParameter, "%s must be in (0, %d] basis points, got %d", name, MaxBasisPoints, bp)
	}
	return nil
}

// Unit is a governance unit (a DAO): its authority, treasury, counters and rules.
type Unit struct {
	ID             string
	Authority      string
	Name           string
	Treasury       string
	TotalMembers   uint64
	TotalProposals uint64
	Params
	IsActive  bool
	CreatedAt time.Time
}

// ReferencePower is the quorum denominator for the unit.
func (u Unit) ReferencePower() uint64 {
	return satMul(u.TotalMembers, ReferencePowerPerMember)
}

// Member is a participant of exactly one unit.
type Member struct {
	UnitID           string
	Address          string
	VotingPower      uint64
	Delegate         string // empty when not delegating
	ProposalsCreated uint64
	VotesCast        uint64
	IsActive         bool
	JoinedAt         time.Time
}

// HasDelegate reports whether the member currently delegates.
func (m Member) HasDelegate() bool { return m.Delegate != "" }

// Tally holds the accumulated voting power per choice.
type Tally struct {
	Yes     uint64
	No      uint64
	Abstain uint64
	Total   uint64
}

// Proposal is a request for the unit to perform one Action.
type Proposal struct {
	UnitID      string
	ID          uint64
	Proposer    string
	Title       string
	Description string
	Action      Action
	ActionHash  string
	Tally
	StartTime   time.Time
	EndTime     time.Time
	QueuedAt    *time.Time
	ExecutedAt  *time.Time
	CancelledAt *time.Time
	Status      ProposalStatus
}

// Vote is the single ballot a member casts on a proposal.
type Vote struct {
	UnitID      string
	ProposalID  uint64
	Voter       string
	Kind        VoteKind
	VotingPower uint64
	Comment     string
	VotedAt     time.Time
}

// Delegation snapshots a delegator's power at the time it was delegated.
// It is never updated; revocation only clears Member.Delegate.
type Delegation struct {
	ID             string
	UnitID         string
	Delegator      string
	Delegatee      string
	DelegatedPower uint64
	CreatedAt      time.Time
}

func timePtr(t time.Time) *time.Time { return &t }
