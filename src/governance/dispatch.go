package governance

import (
	"context"
	"strconv"
	"time"
)

// Dispatcher applies the effect of an approved proposal.
type Dispatcher struct {
	treasury Transferer
	custom   CustomTarget
}

// NewDispatcher returns a dispatcher paying transfers through treasury and
// forwarding custom actions to custom.
func NewDispatcher(treasury Transferer, custom CustomTarget) *Dispatcher {
	return &Dispatcher{treasury: treasury, custom: custom}
}

// dispatch performs p's action for unit u inside tx. Unit and member
// changes are written through tx; external effects go through the
// dispatcher's collaborators.
func (d *Dispatcher) dispatch(ctx context.Context, tx Tx, u *Unit, p *Proposal, now time.Time, ev *events) error {
	pid := idPtr(p.ID)

	switch a := p.Action.(type) {
	case Transfer:
		if d.treasury == nil {
			return errorf(CodeDispatchFailed, "no treasury configured")
		}
		if err := d.treasury.Transfer(ctx, u.Treasury, a.Recipient, a.Amount); err != nil {
			if CodeOf(err) == CodeInsufficientFunds {
				return err
			}
			return wrapf(CodeDispatchFailed, err, "transfer from %s", u.Treasury)
		}
		ev.add(EventTreasuryTransfer, u.ID, pid, "", map[string]string{
			"from":   u.Treasury,
			"to":     a.Recipient,
			"amount": strconv.FormatUint(a.Amount, 10),
		})

	case ConfigChange:
		if err := a.validate(); err != nil {
			return err
		}
		next := a.Apply(u.Params)
		if err := next.Validate(); err != nil {
			return err
		}
		u.Params = next
		if err := tx.SaveUnit(u); err != nil {
			return err
		}
		ev.add(EventConfigChanged, u.ID, pid, "", map[string]string{
			"voting_period":  u.VotingPeriod.String(),
			"timelock_delay": u.TimelockDelay.String(),
			"quorum_bp":      strconv.FormatUint(u.QuorumThresholdBp, 10),
			"approval_bp":    strconv.FormatUint(u.ApprovalThresholdBp, 10),
		})

	case AddMember:
		if err := d.addMember(tx, u, a, now); err != nil {
			return err
		}
		ev.add(EventMemberAdded, u.ID, pid, "", map[string]string{
			"member": a.Member,
			"power":  strconv.FormatUint(a.Power, 10),
		})

	case RemoveMember:
		m, err := tx.LoadMember(u.ID, a.Member)
		if err != nil {
			return err
		}
		m.IsActive = false
		if err := tx.SaveMember(m); err != nil {
			return err
		}
		ev.add(EventMemberRemoved, u.ID, pid, "", map[string]string{"member": a.Member})

	case Custom:
		if d.custom == nil {
			return errorf(CodeDispatchFailed, "no custom target configured")
		}
		call := CustomCall{UnitID: u.ID, ProposalID: p.ID, Target: a.Target, Data: a.Data}
		if err := d.custom.Call(ctx, call); err != nil {
			return wrapf(CodeDispatchFailed, err, "custom call to %s", a.Target)
		}
		ev.add(EventCustomDispatched, u.ID, pid, "", map[string]string{
			"target": a.Target,
			"bytes":  strconv.Itoa(len(a.Data)),
		})

	default:
		return errorf(CodeInternal, "no dispatch for action %T", p.Action)
	}
	return nil
}

// addMember registers a new member, or reactivates an inactive one with
// the proposed power.
func (d *Dispatcher) addMember(tx Tx, u *Unit, a AddMember, now time.Time) error {
	m, err := tx.LoadMember(u.ID, a.Member)
	switch {
	case CodeOf(err) == CodeNotFound:
		_, err = registerMember(tx, u, a.Member, a.Power, now)
		return err
	case err != nil:
		return err
	case m.IsActive:
		return errorf(CodeAlreadyExists, "%s is already an active member", a.Member)
	}
	m.IsActive = true
	m.VotingPower = a.Power
	return tx.SaveMember(m)
}
