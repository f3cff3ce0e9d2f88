// Package seed bootstraps governance units from a YAML genesis file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stake-plus/dao-governance/src/governance"
)

// Genesis is the document root.
type Genesis struct {
	Units []Unit `yaml:"units"`
}

// Unit describes one unit to create.
type Unit struct {
	Authority           string        `yaml:"authority"`
	Name                string        `yaml:"name"`
	Treasury            string        `yaml:"treasury"`
	TreasuryBalance     uint64        `yaml:"treasuryBalance"`
	VotingPeriod        time.Duration `yaml:"votingPeriod"`
	TimelockDelay       time.Duration `yaml:"timelockDelay"`
	QuorumThresholdBp   uint64        `yaml:"quorumThresholdBp"`
	ApprovalThresholdBp uint64        `yaml:"approvalThresholdBp"`
	Members             []Member      `yaml:"members"`
}

type Member struct {
	Address     string `yaml:"address"`
	VotingPower uint64 `yaml:"votingPower"`
}

// BalanceSetter credits treasury accounts.
type BalanceSetter interface {
	SetBalance(ctx context.Context, address string, balance uint64) error
}

// Parse decodes a genesis document, rejecting unknown fields.
func Parse(r io.Reader) (*Genesis, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var g Genesis
	if err := dec.Decode(&g); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}
	for i, u := range g.Units {
		if u.Authority == "" {
			return nil, fmt.Errorf("genesis unit %d: authority is required", i)
		}
	}
	return &g, nil
}

// Load reads a genesis file.
func Load(path string) (*Genesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Apply creates every unit, registers its members and funds its treasury.
func Apply(ctx context.Context, e *governance.Engine, treasury BalanceSetter, g *Genesis, log *zap.Logger) ([]*governance.Unit, error) {
	out := make([]*governance.Unit, 0, len(g.Units))
	for _, su := range g.Units {
		u, err := e.CreateUnit(ctx, su.Authority, governance.NewUnit{
			Name:     su.Name,
			Treasury: su.Treasury,
			Params: governance.Params{
				VotingPeriod:        su.VotingPeriod,
				TimelockDelay:       su.TimelockDelay,
				QuorumThresholdBp:   su.QuorumThresholdBp,
				ApprovalThresholdBp: su.ApprovalThresholdBp,
			},
		})
		if err != nil {
			return out, fmt.Errorf("create unit %q: %w", su.Name, err)
		}

		for _, m := range su.Members {
			if _, err := e.AddMember(ctx, su.Authority, u.ID, m.Address, m.VotingPower); err != nil {
				return out, fmt.Errorf("unit %q: add member %s: %w", su.Name, m.Address, err)
			}
		}

		if su.TreasuryBalance > 0 && treasury != nil {
			if err := treasury.SetBalance(ctx, u.Treasury, su.TreasuryBalance); err != nil {
				return out, fmt.Errorf("unit %q: fund treasury: %w", su.Name, err)
			}
		}

		if u, err = e.Unit(ctx, u.ID); err != nil {
			return out, err
		}
		log.Info("seeded unit",
			zap.String("unit", u.ID),
			zap.String("name", u.Name),
			zap.Uint64("members", u.TotalMembers),
			zap.Uint64("treasury_balance", su.TreasuryBalance))
		out = append(out, u)
	}
	return out, nil
}
