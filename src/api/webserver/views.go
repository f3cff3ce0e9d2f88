package webserver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/stake-plus/dao-governance/src/governance"
)

// Durations cross the API as whole seconds.

// maxSeconds is the largest second count a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

func secondsToDuration(name string, sec int64) (time.Duration, error) {
	if sec > maxSeconds || sec < -maxSeconds {
		return 0, fmt.Errorf("%s must not exceed %d seconds", name, maxSeconds)
	}
	return time.Duration(sec) * time.Second, nil
}

type paramsView struct {
	VotingPeriodSec     int64  `json:"votingPeriodSec"`
	TimelockDelaySec    int64  `json:"timelockDelaySec"`
	QuorumThresholdBp   uint64 `json:"quorumThresholdBp"`
	ApprovalThresholdBp uint64 `json:"approvalThresholdBp"`
}

func (p paramsView) toParams() (governance.Params, error) {
	voting, err := secondsToDuration("votingPeriodSec", p.VotingPeriodSec)
	if err != nil {
		return governance.Params{}, err
	}
	timelock, err := secondsToDuration("timelockDelaySec", p.TimelockDelaySec)
	if err != nil {
		return governance.Params{}, err
	}
	return governance.Params{
		VotingPeriod:        voting,
		TimelockDelay:       timelock,
		QuorumThresholdBp:   p.QuorumThresholdBp,
		ApprovalThresholdBp: p.ApprovalThresholdBp,
	}, nil
}

func viewParams(p governance.Params) paramsView {
	return paramsView{
		VotingPeriodSec:     int64(p.VotingPeriod / time.Second),
		TimelockDelaySec:    int64(p.TimelockDelay / time.Second),
		QuorumThresholdBp:   p.QuorumThresholdBp,
		ApprovalThresholdBp: p.ApprovalThresholdBp,
	}
}

type unitView struct {
	ID             string `json:"id"`
	Authority      string `json:"authority"`
	Name           string `json:"name"`
	Treasury       string `json:"treasury"`
	TotalMembers   uint64 `json:"totalMembers"`
	TotalProposals uint64 `json:"totalProposals"`
	paramsView
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewUnit(u *governance.Unit) unitView {
	return unitView{
		ID:             u.ID,
		Authority:      u.Authority,
		Name:           u.Name,
		Treasury:       u.Treasury,
		TotalMembers:   u.TotalMembers,
		TotalProposals: u.TotalProposals,
		paramsView:     viewParams(u.Params),
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
	}
}

type memberView struct {
	UnitID           string    `json:"unitId"`
	Address          string    `json:"address"`
	VotingPower      uint64    `json:"votingPower"`
	Delegate         string    `json:"delegate,omitempty"`
	ProposalsCreated uint64    `json:"proposalsCreated"`
	VotesCast        uint64    `json:"votesCast"`
	IsActive         bool      `json:"isActive"`
	JoinedAt         time.Time `json:"joinedAt"`
}

func viewMember(m *governance.Member) memberView {
	return memberView{
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

// actionBody is the wire form of every action kind; kind selects which
// fields apply.
type actionBody struct {
	Kind governance.ActionKind `json:"kind"`

	Recipient string `json:"recipient,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`

	VotingPeriodSec     *int64  `json:"votingPeriodSec,omitempty"`
	TimelockDelaySec    *int64  `json:"timelockDelaySec,omitempty"`
	QuorumThresholdBp   *uint64 `json:"quorumThresholdBp,omitempty"`
	ApprovalThresholdBp *uint64 `json:"approvalThresholdBp,omitempty"`

	Member string `json:"member,omitempty"`
	Power  uint64 `json:"power,omitempty"`

	Target string `json:"target,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

func seconds(name string, v *int64) (*time.Duration, error) {
	if v == nil {
		return nil, nil
	}
	d, err := secondsToDuration(name, *v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func secondsOf(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	s := int64(*d / time.Second)
	return &s
}

func (b actionBody) toAction() (governance.Action, error) {
	switch b.Kind {
	case governance.ActionTransfer:
		return governance.Transfer{Recipient: b.Recipient, Amount: b.Amount}, nil
	case governance.ActionConfigChange:
		voting, err := seconds("votingPeriodSec", b.VotingPeriodSec)
		if err != nil {
			return nil, err
		}
		timelock, err := seconds("timelockDelaySec", b.TimelockDelaySec)
		if err != nil {
			return nil, err
		}
		return governance.ConfigChange{
			VotingPeriod:        voting,
			TimelockDelay:       timelock,
			QuorumThresholdBp:   b.QuorumThresholdBp,
			ApprovalThresholdBp: b.ApprovalThresholdBp,
		}, nil
	case governance.ActionAddMember:
		return governance.AddMember{Member: b.Member, Power: b.Power}, nil
	case governance.ActionRemoveMember:
		return governance.RemoveMember{Member: b.Member}, nil
	case governance.ActionCustom:
		return governance.Custom{Target: b.Target, Data: b.Data}, nil
	case "":
		return nil, errors.New("action kind is required")
	default:
		return nil, fmt.Errorf("unknown action kind %q", b.Kind)
	}
}

func viewAction(a governance.Action) actionBody {
	switch a := a.(type) {
	case governance.Transfer:
		return actionBody{Kind: a.Kind(), Recipient: a.Recipient, Amount: a.Amount}
	case governance.ConfigChange:
		return actionBody{
			Kind:                a.Kind(),
			VotingPeriodSec:     secondsOf(a.VotingPeriod),
			TimelockDelaySec:    secondsOf(a.TimelockDelay),
			QuorumThresholdBp:   a.QuorumThresholdBp,
			ApprovalThresholdBp: a.ApprovalThresholdBp,
		}
	case governance.AddMember:
		return actionBody{Kind: a.Kind(), Member: a.Member, Power: a.Power}
	case governance.RemoveMember:
		return actionBody{Kind: a.Kind(), Member: a.Member}
	case governance.Custom:
		return actionBody{Kind: a.Kind(), Target: a.Target, Data: a.Data}
	default:
		return actionBody{}
	}
}

type proposalView struct {
	UnitID      string     `json:"unitId"`
	ID          uint64     `json:"id"`
	Proposer    string     `json:"proposer"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Action      actionBody `json:"action"`
	ActionHash  string     `json:"actionHash"`
	YesVotes    uint64     `json:"yesVotes"`
	NoVotes     uint64     `json:"noVotes"`
	Abstain     uint64     `json:"abstainVotes"`
	TotalVotes  uint64     `json:"totalVotes"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     time.Time  `json:"endTime"`
	QueuedAt    *time.Time `json:"queuedAt,omitempty"`
	ExecutedAt  *time.Time `json:"executedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	Status      string     `json:"status"`
}

func viewProposal(p *governance.Proposal) proposalView {
	return proposalView{
		UnitID:      p.UnitID,
		ID:          p.ID,
		Proposer:    p.Proposer,
		Title:       p.Title,
		Description: p.Description,
		Action:      viewAction(p.Action),
		ActionHash:  p.ActionHash,
		YesVotes:    p.Yes,
		NoVotes:     p.No,
		Abstain:     p.Abstain,
		TotalVotes:  p.Total,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		QueuedAt:    p.QueuedAt,
		ExecutedAt:  p.ExecutedAt,
		CancelledAt: p.CancelledAt,
		Status:      string(p.Status),
	}
}

type voteView struct {
	UnitID      string    `json:"unitId"`
	ProposalID  uint64    `json:"proposalId"`
	Voter       string    `json:"voter"`
	Kind        string    `json:"kind"`
	VotingPower uint64    `json:"votingPower"`
	Comment     string    `json:"comment,omitempty"`
	VotedAt     time.Time `json:"votedAt"`
}

func viewVote(v *governance.Vote) voteView {
	return voteView{
		UnitID:      v.UnitID,
		ProposalID:  v.ProposalID,
		Voter:       v.Voter,
		Kind:        string(v.Kind),
		VotingPower: v.VotingPower,
		Comment:     v.Comment,
		VotedAt:     v.VotedAt,
	}
}

type delegationView struct {
	ID             string    `json:"id"`
	UnitID         string    `json:"unitId"`
	Delegator      string    `json:"delegator"`
	Delegatee      string    `json:"delegatee"`
	DelegatedPower uint64    `json:"delegatedPower"`
	CreatedAt      time.Time `json:"createdAt"`
}

func viewDelegation(d *governance.Delegation) delegationView {
	return delegationView{
		ID:             d.ID,
		UnitID:         d.UnitID,
		Delegator:      d.Delegator,
		Delegatee:      d.Delegatee,
		DelegatedPower: d.DelegatedPower,
		CreatedAt:      d.CreatedAt,
	}
}
