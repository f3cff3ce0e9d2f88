package governance

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// NewProposal describes a proposal to open.
type NewProposal struct {
	Title       string
	Description string
	Action      Action
}

// CreateProposal opens a proposal on unitID on behalf of caller, who must
// be an active member with voting power.
func (e *Engine) CreateProposal(ctx context.Context, caller, unitID string, in NewProposal) (*Proposal, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	var out *Proposal
	err := e.run(ctx, "create_proposal", unitID, caller, func(_ context.Context, tx Tx, now time.Time, ev *events) error {
		u, err := tx.LoadUnit(unitID)
		if err != nil {
			return err
		}
		if !u.IsActive {
			return errorf(CodeUnitNotActive, "unit %s is not active", unitID)
		}
		member, err := loadActiveMember(tx, unitID, caller)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.Title) == "" {
			return errorf(CodeInvalidParameter, "proposal title is required")
		}
		if in.Action == nil {
			return errorf(CodeInvalidParameter, "proposal action is required")
		}
		if err := in.Action.validate(); err != nil {
			return err
		}
		hash, err := HashAction(in.Action)
		if err != nil {
			return wrapf(CodeInvalidParameter, err, "encode action")
		}

		p := &Proposal{
			UnitID:      unitID,
			ID:          u.TotalProposals,
			Proposer:    caller,
			Title:       in.Title,
			Description: in.Description,
			Action:      in.Action,
			ActionHash:  hash,
			StartTime:   now,
			EndTime:     now.Add(u.VotingPeriod),
			Status:      StatusActive,
		}
		if err := tx.CreateProposal(p); err != nil {
			return err
		}
		u.TotalProposals++
		if err := tx.SaveUnit(u); err != nil {
			return err
		}
		member.ProposalsCreated++
		if err := tx.SaveMember(member); err != nil {
			return err
		}

		ev.add(EventProposalCreated, unitID, idPtr(p.ID), caller, map[string]string{
			"title":  p.Title,
			"action": string(p.Action.Kind()),
			"ends":   p.EndTime.Format(time.RFC3339),
		})
		out = p
		return nil
	})
	return out, err
}

// QueueProposal closes voting on an Active proposal whose voting period has
// ended. A proposal that reaches quorum becomes Succeeded (and is queued
// behind the timelock) or Defeated; one that misses quorum stays Active and
// the call fails with ErrQuorumNotReached.
func (e *Engine) QueueProposal(ctx context.Context, caller, unitID string, id uint64) (*Proposal, error) {
	var out *Proposal
	err := e.run(ctx, "queue_proposal", unitID, caller, func(_ context.Context, tx Tx, now time.Time, ev *events) error {
		u, err := tx.LoadUnit(unitID)
		if err != nil {
			return err
		}
		p, err := tx.LoadProposal(unitID, id)
		if err != nil {
			return err
		}
		if p.Status != StatusActive {
			return errorf(CodeNotActive, "proposal %d is %s", id, p.Status)
		}
		if !now.After(p.EndTime) {
			return errorf(CodeVotingNotEnded, "voting on proposal %d ends at %s", id, p.EndTime.Format(time.RFC3339))
		}

		o := Evaluate(p.Tally, u.ReferencePower(), u.Params)
		if !o.QuorumReached {
			return errorf(CodeQuorumNotReached, "participation %dbp is below quorum %dbp", o.ParticipationBp, u.QuorumThresholdBp)
		}

		attrs := map[string]string{
			"participation_bp": strconv.FormatUint(o.ParticipationBp, 10),
			"approval_bp":      strconv.FormatUint(o.ApprovalBp, 10),
		}
		if o.Approved {
			p.Status = StatusSucceeded
			p.QueuedAt = timePtr(now)
			ev.add(EventProposalSucceeded, unitID, idPtr(id), caller, attrs)
		} else {
			p.Status = StatusDefeated
			ev.add(EventProposalDefeated, unitID, idPtr(id), caller, attrs)
		}
		if err := tx.SaveProposal(p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// CancelProposal cancels an Active or Succeeded proposal. Only its proposer
// or the unit authority may cancel.
func (e *Engine) CancelProposal(ctx context.Context, caller, unitID string, id uint64) (*Proposal, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	var out *Proposal
	err := e.run(ctx, "cancel_proposal", unitID, caller, func(_ context.Context, tx Tx, now time.Time, ev *events) error {
		u, err := tx.LoadUnit(unitID)
		if err != nil {
			return err
		}
		p, err := tx.LoadProposal(unitID, id)
		if err != nil {
			return err
		}
		if p.Status != StatusActive && p.Status != StatusSucceeded {
			return errorf(CodeCannotCancel, "proposal %d is %s", id, p.Status)
		}
		if caller != p.Proposer && caller != u.Authority {
			return errorf(CodeUnauthorized, "only the proposer or the unit authority may cancel")
		}
		p.Status = StatusCancelled
		p.CancelledAt = timePtr(now)
		if err := tx.SaveProposal(p); err != nil {
			return err
		}
		ev.add(EventProposalCancelled, unitID, idPtr(id), caller, nil)
		out = p
		return nil
	})
	return out, err
}
