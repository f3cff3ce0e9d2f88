package data

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stake-plus/dao-governance/src/governance"
)

type memberKey struct{ unit, address string }

type proposalKey struct {
	unit string
	id   uint64
}

type voteKey struct {
	unit  string
	id    uint64
	voter string
}

// MemoryStore is an in-memory governance.Store. Each unit has its own lock;
// writes are staged per transaction and applied only on success.
type MemoryStore struct {
	locksMu sync.Mutex
	locks   map[string]*unitLock

	mu          sync.RWMutex
	units       map[string]governance.Unit
	members     map[memberKey]governance.Member
	proposals   map[proposalKey]governance.Proposal
	votes       map[voteKey]governance.Vote
	delegations map[string]governance.Delegation
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:       make(map[string]*unitLock),
		units:       make(map[string]governance.Unit),
		members:     make(map[memberKey]governance.Member),
		proposals:   make(map[proposalKey]governance.Proposal),
		votes:       make(map[voteKey]governance.Vote),
		delegations: make(map[string]governance.Delegation),
	}
}

// unitLock is dropped from the map once no caller holds or waits on it.
type unitLock struct {
	mu   sync.Mutex
	refs int
}

func (s *MemoryStore) lock(unitID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[unitID]
	if !ok {
		l = &unitLock{}
		s.locks[unitID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		defer s.locksMu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, unitID)
		}
	}
}

func (s *MemoryStore) newTx() *memTx {
	return &memTx{
		s:           s,
		units:       make(map[string]governance.Unit),
		members:     make(map[memberKey]governance.Member),
		proposals:   make(map[proposalKey]governance.Proposal),
		votes:       make(map[voteKey]governance.Vote),
		delegations: make(map[string]governance.Delegation),
	}
}

// Atomic runs fn with the unit lock held and commits its staged writes
// when fn succeeds.
func (s *MemoryStore) Atomic(ctx context.Context, unitID string, fn func(ctx context.Context, tx governance.Tx) error) error {
	unlock := s.lock(unitID)
	defer unlock()

	tx := s.newTx()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// View runs fn over committed state without the unit lock. Staged writes
// are dropped.
func (s *MemoryStore) View(ctx context.Context, _ string, fn func(ctx context.Context, tx governance.Tx) error) error {
	return fn(ctx, s.newTx())
}

// Delegations returns the delegation records of unitID ordered by creation.
func (s *MemoryStore) Delegations(unitID string) []governance.Delegation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []governance.Delegation
	for _, d := range s.delegations {
		if d.UnitID == unitID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memTx struct {
	s           *MemoryStore
	units       map[string]governance.Unit
	members     map[memberKey]governance.Member
	proposals   map[proposalKey]governance.Proposal
	votes       map[voteKey]governance.Vote
	delegations map[string]governance.Delegation
}

func (t *memTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for k, v := range t.units {
		t.s.units[k] = v
	}
	for k, v := range t.members {
		t.s.members[k] = v
	}
	for k, v := range t.proposals {
		t.s.proposals[k] = v
	}
	for k, v := range t.votes {
		t.s.votes[k] = v
	}
	for k, v := range t.delegations {
		t.s.delegations[k] = v
	}
}

func notFound(format string, args ...any) error {
	return governance.NewError(governance.CodeNotFound, format, args...)
}

func alreadyExists(format string, args ...any) error {
	return governance.NewError(governance.CodeAlreadyExists, format, args...)
}

func lookup[K comparable, V any](staged map[K]V, mu *sync.RWMutex, committed map[K]V, k K) (V, bool) {
	if v, ok := staged[k]; ok {
		return v, true
	}
	mu.RLock()
	defer mu.RUnlock()
	v, ok := committed[k]
	return v, ok
}

func (t *memTx) CreateUnit(u *governance.Unit) error {
	if _, ok := lookup(t.units, &t.s.mu, t.s.units, u.ID); ok {
		return alreadyExists("unit %s already exists", u.ID)
	}
	t.units[u.ID] = *u
	return nil
}

func (t *memTx) LoadUnit(id string) (*governance.Unit, error) {
	u, ok := lookup(t.units, &t.s.mu, t.s.units, id)
	if !ok {
		return nil, notFound("unit %s not found", id)
	}
	return &u, nil
}

func (t *memTx) SaveUnit(u *governance.Unit) error {
	t.units[u.ID] = *u
	return nil
}

func (t *memTx) CreateMember(m *governance.Member) error {
	k := memberKey{m.UnitID, m.Address}
	if _, ok := lookup(t.members, &t.s.mu, t.s.members, k); ok {
		return alreadyExists("member %s already exists", m.Address)
	}
	t.members[k] = *m
	return nil
}

func (t *memTx) LoadMember(unitID, address string) (*governance.Member, error) {
	m, ok := lookup(t.members, &t.s.mu, t.s.members, memberKey{unitID, address})
	if !ok {
		return nil, notFound("member %s not found", address)
	}
	return &m, nil
}

func (t *memTx) SaveMember(m *governance.Member) error {
	t.members[memberKey{m.UnitID, m.Address}] = *m
	return nil
}

func (t *memTx) CreateProposal(p *governance.Proposal) error {
	k := proposalKey{p.UnitID, p.ID}
	if _, ok := lookup(t.proposals, &t.s.mu, t.s.proposals, k); ok {
		return alreadyExists("proposal %d already exists", p.ID)
	}
	t.proposals[k] = cloneProposal(*p)
	return nil
}

func (t *memTx) LoadProposal(unitID string, id uint64) (*governance.Proposal, error) {
	p, ok := lookup(t.proposals, &t.s.mu, t.s.proposals, proposalKey{unitID, id})
	if !ok {
		return nil, notFound("proposal %d not found", id)
	}
	p = cloneProposal(p)
	return &p, nil
}

func (t *memTx) SaveProposal(p *governance.Proposal) error {
	t.proposals[proposalKey{p.UnitID, p.ID}] = cloneProposal(*p)
	return nil
}

func (t *memTx) ListProposals(unitID string) ([]governance.Proposal, error) {
	byID := make(map[uint64]governance.Proposal)
	t.s.mu.RLock()
	for k, p := range t.s.proposals {
		if k.unit == unitID {
			byID[k.id] = p
		}
	}
	t.s.mu.RUnlock()
	for k, p := range t.proposals {
		if k.unit == unitID {
			byID[k.id] = p
		}
	}

	out := make([]governance.Proposal, 0, len(byID))
	for _, p := range byID {
		out = append(out, cloneProposal(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateVote(v *governance.Vote) error {
	k := voteKey{v.UnitID, v.ProposalID, v.Voter}
	if _, ok := lookup(t.votes, &t.s.mu, t.s.votes, k); ok {
		return alreadyExists("vote by %s already exists", v.Voter)
	}
	t.votes[k] = *v
	return nil
}

func (t *memTx) LoadVote(unitID string, proposalID uint64, voter string) (*governance.Vote, error) {
	v, ok := lookup(t.votes, &t.s.mu, t.s.votes, voteKey{unitID, proposalID, voter})
	if !ok {
		return nil, notFound("vote by %s on proposal %d not found", voter, proposalID)
	}
	return &v, nil
}

func (t *memTx) CreateDelegation(d *governance.Delegation) error {
	if d.ID == "" {
		return fmt.Errorf("delegation id is required")
	}
	if _, ok := lookup(t.delegations, &t.s.mu, t.s.delegations, d.ID); ok {
		return alreadyExists("delegation %s already exists", d.ID)
	}
	t.delegations[d.ID] = *d
	return nil
}

// cloneProposal copies the optional timestamps so callers cannot mutate
// stored state through them.
func cloneProposal(p governance.Proposal) governance.Proposal {
	p.QueuedAt = cloneTime(p.QueuedAt)
	p.ExecutedAt = cloneTime(p.ExecutedAt)
	p.CancelledAt = cloneTime(p.CancelledAt)
	return p
}

func cloneTime[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
