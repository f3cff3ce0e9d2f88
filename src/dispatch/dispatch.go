// Package dispatch delivers custom proposal actions to external programs.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/OneOfOne/xxhash"

	"github.com/stake-plus/dao-governance/src/governance"
)

// Router resolves a custom action's target name to a registered target.
type Router struct {
	mu      sync.RWMutex
	targets map[string]governance.CustomTarget
}

func NewRouter() *Router {
	return &Router{targets: make(map[string]governance.CustomTarget)}
}

// Register binds name to target, replacing any earlier binding.
func (r *Router) Register(name string, target governance.CustomTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[name] = target
}

// Names lists the registered targets in order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.targets))
	for n := range r.targets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Router) Call(ctx context.Context, call governance.CustomCall) error {
	r.mu.RLock()
	target, ok := r.targets[call.Target]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown custom target %q", call.Target)
	}
	return target.Call(ctx, call)
}

// IdempotencyKey identifies one execution of a proposal's custom action.
// Receivers use it to drop redeliveries.
func IdempotencyKey(call governance.CustomCall) string {
	h := xxhash.NewS64(0)
	h.WriteString(call.UnitID)
	h.WriteString("/")
	h.WriteString(strconv.FormatUint(call.ProposalID, 10))
	h.WriteString("/")
	h.WriteString(call.Target)
	h.WriteString("/")
	h.Write(call.Data)
	return strconv.FormatUint(h.Sum64(), 16)
}
