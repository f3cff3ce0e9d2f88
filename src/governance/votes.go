package governance

import (
	"context"
	"strconv"
	"time"
)

// CastVote records caller's single ballot on proposal id and credits the
// caller's own voting power to the tally. Delegation does not change the
// credited power.
func (e *Engine) CastVote(ctx context.Context, caller, unitID string, id uint64, kind VoteKind, comment string) (*Vote, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, errorf(CodeInvalidParameter, "unknown vote kind %q", kind)
	}
	var out *Vote
	err := e.run(ctx, "cast_vote", unitID, caller, func(_ context.Context, tx Tx, now time.Time, ev *events) error {
		p, err := tx.LoadProposal(unitID, id)
		if err != nil {
			return err
		}
		if p.Status != StatusActive {
			return errorf(CodeNotActive, "proposal %d is %s", id, p.Status)
		}
		if now.After(p.EndTime) {
			return errorf(CodeVotingEnded, "voting on proposal %d ended at %s", id, p.EndTime.Format(time.RFC3339))
		}
		member, err := loadActiveMember(tx, unitID, caller)
		if err != nil {
			return err
		}
		if _, err := tx.LoadVote(unitID, id, caller); err == nil {
			return errorf(CodeDuplicateVote, "%s already voted on proposal %d", caller, id)
		} else if CodeOf(err) != CodeNotFound {
			return err
		}

		tally, err := p.Tally.add(kind, member.VotingPower)
		if err != nil {
			return err
		}

		v := &Vote{
			UnitID:      unitID,
			ProposalID:  id,
			Voter:       caller,
			Kind:        kind,
			VotingPower: member.VotingPower,
			Comment:     comment,
			VotedAt:     now,
		}
		if err := tx.CreateVote(v); err != nil {
			if CodeOf(err) == CodeAlreadyExists {
				return wrapf(CodeDuplicateVote, err, "%s already voted on proposal %d", caller, id)
			}
			return err
		}
		p.Tally = tally
		if err := tx.SaveProposal(p); err != nil {
			return err
		}
		member.VotesCast++
		if err := tx.SaveMember(member); err != nil {
			return err
		}

		ev.add(EventVoteCast, unitID, idPtr(id), caller, map[string]string{
			"kind":  string(kind),
			"power": strconv.FormatUint(member.VotingPower, 10),
		})
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.recorder.ObserveVote(out.Kind, out.VotingPower)
	return out, nil
}
