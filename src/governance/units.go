package governance

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// NewUnit describes a unit to create.
type NewUnit struct {
	Name string
	// Treasury is the account transfers are paid from. Defaults to
	// "treasury:<unit id>".
	Treasury string
	Params
}

// CreateUnit creates a unit administered by caller.
func (e *Engine) CreateUnit(ctx context.Context, caller string, in NewUnit) (*Unit, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, errorf(CodeInvalidParameter, "unit name is required")
	}
	if err := in.Params.Validate(); err != nil {
		return nil, err
	}

	id := e.newID()
	var out *Unit
	err := e.run(ctx, "create_unit", id, caller, func(_ context.Context, tx Tx, now time.Time, ev *events) error {
		u := &Unit{
			ID:        id,
			Authority: caller,
			Name:      in.Name,
			Treasury:  in.Treasury,
			Params:    in.Params,
			IsActive:  true,
			CreatedAt: now,
		}
		if u.Treasury == "" {
			u.Treasury = "treasury:" + id
		}
		if err := tx.CreateUnit(u); err != nil {
			return err
		}
		ev.add(EventUnitCreated, id, nil, caller, map[string]string{"name": u.Name})
		out = u
		return nil
	})
	return out, err
}

// AddMember registers address in unitID with votingPower. Only the unit
// authority may call it.
func (e *Engine) AddMember(ctx context.Context, caller, unitID, address string, votingPower uint64) (*Member, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	var out *Member
	err := e.run(ctx, "add_member", unitID, caller, func(_ context.Context, tx Tx, now time.Time, ev *events) error {
		u, err := tx.LoadUnit(unitID)
		if err != nil {
			return err
		}
		if u.Authority != caller {
			return errorf(CodeUnauthorized, "only the unit authority may add members")
		}
		if !u.IsActive {
			return errorf(CodeUnitNotActive, "unit %s is not active", unitID)
		}
		if votingPower == 0 {
			return errorf(CodeInvalidParameter, "voting power must be positive")
		}
		if strings.TrimSpace(address) == "" {
			return errorf(CodeInvalidParameter, "member address is required")
		}
		m, err := registerMember(tx, u, address, votingPower, now)
		if err != nil {
			return err
		}
		ev.add(EventMemberAdded, unitID, nil, caller, map[string]string{
			"member": address,
			"power":  strconv.FormatUint(votingPower, 10),
		})
		out = m
		return nil
	})
	return out, err
}

// registerMember creates the member record and advances the unit's member
// sequence.
func registerMember(tx Tx, u *Unit, address string, power uint64, now time.Time) (*Member, error) {
	m := &Member{
		UnitID:      u.ID,
		Address:     address,
		VotingPower: power,
		IsActive:    true,
		JoinedAt:    now,
	}
	if err := tx.CreateMember(m); err != nil {
		return nil, err
	}
	u.TotalMembers++
	if err := tx.SaveUnit(u); err != nil {
		return nil, err
	}
	return m, nil
}
