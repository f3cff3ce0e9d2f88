package governance

import (
	"context"
	"time"
)

// ExecuteAfter returns the earliest instant a queued proposal may execute
// under delay, and false when the proposal was never queued.
func ExecuteAfter(p *Proposal, delay time.Duration) (time.Time, bool) {
	if p.QueuedAt == nil {
		return time.Time{}, false
	}
	return p.QueuedAt.Add(delay), true
}

// ExecuteProposal dispatches the action of a Succeeded proposal once the
// unit's timelock has elapsed since it was queued. If the action fails the
// proposal stays Succeeded and the call may be retried.
func (e *Engine) ExecuteProposal(ctx context.Context, caller, unitID string, id uint64) (*Proposal, error) {
	var out *Proposal
	err := e.run(ctx, "execute_proposal", unitID, caller, func(ctx context.Context, tx Tx, now time.Time, ev *events) error {
		u, err := tx.LoadUnit(unitID)
		if err != nil {
			return err
		}
		p, err := tx.LoadProposal(unitID, id)
		if err != nil {
			return err
		}
		if p.Status != StatusSucceeded {
			return errorf(CodeNotQueued, "proposal %d is %s", id, p.Status)
		}
		executeAfter, ok := ExecuteAfter(p, u.TimelockDelay)
		if !ok {
			return errorf(CodeNotQueued, "proposal %d has no queue time", id)
		}
		if now.Before(executeAfter) {
			return errorf(CodeTimelockNotExpired, "proposal %d is timelocked until %s", id, executeAfter.Format(time.RFC3339))
		}

		if err := e.dispatcher.dispatch(ctx, tx, u, p, now, ev); err != nil {
			return err
		}

		p.Status = StatusExecuted
		p.ExecutedAt = timePtr(now)
		if err := tx.SaveProposal(p); err != nil {
			return err
		}
		ev.add(EventProposalExecuted, unitID, idPtr(id), caller, map[string]string{"action": string(p.Action.Kind())})
		out = p
		return nil
	})
	return out, err
}
