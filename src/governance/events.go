package governance

import (
	"context"
	"errors"
	"time"
)

// EventType names a committed governance change.
type EventType string

const (
	EventUnitCreated       EventType = "unit.created"
	EventMemberAdded       EventType = "member.added"
	EventMemberRemoved     EventType = "member.removed"
	EventProposalCreated   EventType = "proposal.created"
	EventVoteCast          EventType = "vote.cast"
	EventProposalSucceeded EventType = "proposal.succeeded"
	EventProposalDefeated  EventType = "proposal.defeated"
	EventProposalExecuted  EventType = "proposal.executed"
	EventProposalCancelled EventType = "proposal.cancelled"
	EventConfigChanged     EventType = "unit.config_changed"
	EventTreasuryTransfer  EventType = "treasury.transfer"
	EventCustomDispatched  EventType = "custom.dispatched"
	EventDelegationCreated EventType = "delegation.created"
	EventDelegationRevoked EventType = "delegation.revoked"
)

// Event describes one committed change. Events are published after the
// transaction that produced them commits.
type Event struct {
	Type       EventType         `json:"type"`
	UnitID     string            `json:"unit"`
	ProposalID *uint64           `json:"proposal,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	At         time.Time         `json:"at"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

// EventSink receives committed events.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// MultiSink publishes to every sink and joins their errors.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) error { return nil }

// events buffers events raised inside a transaction.
type events struct {
	at  time.Time
	buf []Event
}

func (e *events) add(typ EventType, unitID string, proposalID *uint64, actor string, attrs map[string]string) {
	e.buf = append(e.buf, Event{
		Type:       typ,
		UnitID:     unitID,
		ProposalID: proposalID,
		Actor:      actor,
		At:         e.at,
		Attrs:      attrs,
	})
}

func idPtr(id uint64) *uint64 { return &id }
