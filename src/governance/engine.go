// Package governance implements the proposal, voting and execution rules
// of a governance unit.
//
// Every public Engine operation runs inside a single Store transaction
// serialized per unit and reads the clock once. A failing operation leaves
// no trace; a successful one commits all of its writes together and then
// publishes its events.
package governance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine applies governance operations against a Store.
type Engine struct {
	store      Store
	clock      Clock
	dispatcher *Dispatcher
	sink       EventSink
	recorder   Recorder
	log        *zap.Logger
	newID      func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithEventSink sets where committed events are published.
func WithEventSink(s EventSink) Option { return func(e *Engine) { e.sink = s } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option { return func(e *Engine) { e.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithIDGenerator overrides how unit and delegation ids are minted.
func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

// New builds an engine. treasury and custom may be nil, in which case the
// matching actions fail to dispatch.
func New(store Store, treasury Transferer, custom CustomTarget, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		clock:      SystemClock,
		dispatcher: NewDispatcher(treasury, custom),
		sink:       nopSink{},
		recorder:   nopRecorder{},
		log:        zap.NewNop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type opFunc func(ctx context.Context, tx Tx, now time.Time, ev *events) error

// run executes fn as one transaction on unitID and publishes the events it
// raised once the transaction has committed.
func (e *Engine) run(ctx context.Context, op, unitID, caller string, fn opFunc) error {
	started := time.Now()
	now := e.clock.Now()
	ev := &events{at: now}

	err := e.store.Atomic(ctx, unitID, func(ctx context.Context, tx Tx) error {
		ev.buf = ev.buf[:0]
		return fn(ctx, tx, now, ev)
	})
	e.recorder.ObserveOperation(op, CodeOf(err), time.Since(started))
	if err != nil {
		e.log.Debug("governance operation rejected",
			zap.String("op", op),
			zap.String("unit", unitID),
			zap.String("caller", caller),
			zap.String("code", string(CodeOf(err))),
			zap.Error(err))
		return err
	}

	for _, evt := range ev.buf {
		fields := []zap.Field{
			zap.String("event", string(evt.Type)),
			zap.String("unit", evt.UnitID),
			zap.String("actor", evt.Actor),
		}
		if evt.ProposalID != nil {
			fields = append(fields, zap.Uint64("proposal", *evt.ProposalID))
		}
		for k, v := range evt.Attrs {
			fields = append(fields, zap.String(k, v))
		}
		e.log.Info("governance event", fields...)

		if err := e.sink.Publish(ctx, evt); err != nil {
			e.log.Warn("publish governance event", zap.String("event", string(evt.Type)), zap.Error(err))
		}
	}
	return nil
}

func requireCaller(caller string) error {
	if strings.TrimSpace(caller) == "" {
		return errorf(CodeUnauthorized, "caller identity is required")
	}
	return nil
}

// loadActiveMember loads the caller's membership and checks it can act.
func loadActiveMember(tx Tx, unitID, address string) (*Member, error) {
	m, err := tx.LoadMember(unitID, address)
	if err != nil {
		if CodeOf(err) == CodeNotFound {
			return nil, errorf(CodeNotMember, "%s is not a member of unit %s", address, unitID)
		}
		return nil, err
	}
	if !m.IsActive {
		return nil, errorf(CodeMemberInactive, "member %s is not active", address)
	}
	if m.VotingPower == 0 {
		return nil, errorf(CodeZeroVotingPower, "member %s has no voting power", address)
	}
	return m, nil
}

// Unit returns the unit with id.
func (e *Engine) Unit(ctx context.Context, id string) (*Unit, error) {
	var out *Unit
	err := e.store.View(ctx, id, func(_ context.Context, tx Tx) error {
		u, err := tx.LoadUnit(id)
		out = u
		return err
	})
	return out, err
}

// Member returns the membership of address in unitID.
func (e *Engine) Member(ctx context.Context, unitID, address string) (*Member, error) {
	var out *Member
	err := e.store.View(ctx, unitID, func(_ context.Context, tx Tx) error {
		m, err := tx.LoadMember(unitID, address)
		out = m
		return err
	})
	return out, err
}

// Proposal returns proposal id of unitID.
func (e *Engine) Proposal(ctx context.Context, unitID string, id uint64) (*Proposal, error) {
	var out *Proposal
	err := e.store.View(ctx, unitID, func(_ context.Context, tx Tx) error {
		p, err := tx.LoadProposal(unitID, id)
		out = p
		return err
	})
	return out, err
}

// ListProposals returns the proposals of unitID ordered by id.
func (e *Engine) ListProposals(ctx context.Context, unitID string) ([]Proposal, error) {
	var out []Proposal
	err := e.store.View(ctx, unitID, func(_ context.Context, tx Tx) error {
		if _, err := tx.LoadUnit(unitID); err != nil {
			return err
		}
		ps, err := tx.ListProposals(unitID)
		out = ps
		return err
	})
	return out, err
}

// Vote returns the ballot voter cast on proposal id.
func (e *Engine) Vote(ctx context.Context, unitID string, proposalID uint64, voter string) (*Vote, error) {
	var out *Vote
	err := e.store.View(ctx, unitID, func(_ context.Context, tx Tx) error {
		v, err := tx.LoadVote(unitID, proposalID, voter)
		out = v
		return err
	})
	return out, err
}
