package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stake-plus/dao-governance/src/data"
	"github.com/stake-plus/dao-governance/src/governance"
)

const genesis = `
units:
  - authority: root
    name: Grants Council
    treasury: grants-treasury
    treasuryBalance: 5000
    votingPeriod: 72h
    timelockDelay: 24h
    quorumThresholdBp: 4000
    approvalThresholdBp: 6000
    members:
      - address: alice
        votingPower: 1000
      - address: bob
        votingPower: 500
`

func TestParse(t *testing.T) {
	g, err := Parse(strings.NewReader(genesis))
	require.NoError(t, err)
	require.Len(t, g.Units, 1)
	u := g.Units[0]
	assert.Equal(t, 72*time.Hour, u.VotingPeriod)
	assert.Equal(t, 24*time.Hour, u.TimelockDelay)
	assert.Len(t, u.Members, 2)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("units:\n  - authority: a\n    colour: red\n"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("units:\n  - name: nobody\n"))
	assert.ErrorContains(t, err, "authority is required")
}

func TestApply(t *testing.T) {
	g, err := Parse(strings.NewReader(genesis))
	require.NoError(t, err)

	treasury := data.NewMemoryTreasury(nil)
	e := governance.New(data.NewMemoryStore(), treasury, nil)

	units, err := Apply(context.Background(), e, treasury, g, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, uint64(2), units[0].TotalMembers)
	assert.Equal(t, "grants-treasury", units[0].Treasury)

	bal, err := treasury.Balance(context.Background(), "grants-treasury")
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), bal)

	m, err := e.Member(context.Background(), units[0].ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), m.VotingPower)
}

func TestApplyStopsOnInvalidUnit(t *testing.T) {
	g := &Genesis{Units: []Unit{{Authority: "root", Name: "broken", VotingPeriod: time.Hour}}}
	e := governance.New(data.NewMemoryStore(), nil, nil)
	_, err := Apply(context.Background(), e, nil, g, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, governance.CodeInvalidParameter, governance.CodeOf(err))
}
