package governance

import (
	"context"
	"strconv"
	"time"
)

// DelegateVote points caller's delegate at delegatee and records the
// caller's current voting power. Re-delegating overwrites the pointer and
// records a new Delegation.
func (e *Engine) DelegateVote(ctx context.Context, caller, unitID, delegatee string) (*Delegation, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if caller == delegatee {
		return nil, errorf(CodeInvalidParameter, "cannot delegate to self")
	}
	var out *Delegation
	err := e.run(ctx, "delegate_vote", unitID, caller, func(_ context.Context, tx Tx, now time.Time, ev *events) error {
		if _, err := tx.LoadUnit(unitID); err != nil {
			return err
		}
		delegator, err := tx.LoadMember(unitID, caller)
		if err != nil {
			if CodeOf(err) == CodeNotFound {
				return errorf(CodeNotMember, "%s is not a member of unit %s", caller, unitID)
			}
			return err
		}
		if !delegator.IsActive {
			return errorf(CodeMemberInactive, "member %s is not active", caller)
		}
		target, err := tx.LoadMember(unitID, delegatee)
		if err != nil {
			return err
		}
		if !target.IsActive {
			return errorf(CodeMemberInactive, "delegatee %s is not active", delegatee)
		}

		d := &Delegation{
			ID:             e.newID(),
			UnitID:         unitID,
			Delegator:      caller,
			Delegatee:      delegatee,
			DelegatedPower: delegator.VotingPower,
			CreatedAt:      now,
		}
		if err := tx.CreateDelegation(d); err != nil {
			return err
		}
		delegator.Delegate = delegatee
		if err := tx.SaveMember(delegator); err != nil {
			return err
		}
		ev.add(EventDelegationCreated, unitID, nil, caller, map[string]string{
			"delegatee": delegatee,
			"power":     strconv.FormatUint(d.DelegatedPower, 10),
		})
		out = d
		return nil
	})
	return out, err
}

// RevokeDelegation clears caller's delegate. The Delegation record stays.
func (e *Engine) RevokeDelegation(ctx context.Context, caller, unitID string) (*Member, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	var out *Member
	err := e.run(ctx, "revoke_delegation", unitID, caller, func(_ context.Context, tx Tx, _ time.Time, ev *events) error {
		m, err := tx.LoadMember(unitID, caller)
		if err != nil {
			if CodeOf(err) == CodeNotFound {
				return errorf(CodeNotMember, "%s is not a member of unit %s", caller, unitID)
			}
			return err
		}
		if !m.HasDelegate() {
			return errorf(CodeNoDelegation, "%s has no delegation to revoke", caller)
		}
		previous := m.Delegate
		m.Delegate = ""
		if err := tx.SaveMember(m); err != nil {
			return err
		}
		ev.add(EventDelegationRevoked, unitID, nil, caller, map[string]string{"delegatee": previous})
		out = m
		return nil
	})
	return out, err
}
