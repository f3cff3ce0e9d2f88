package webserver

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/dao-governance/src/api/config"
	"github.com/stake-plus/dao-governance/src/data"
	"github.com/stake-plus/dao-governance/src/governance"
	"github.com/stake-plus/dao-governance/src/metrics"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memNonces struct {
	mu sync.Mutex
	m  map[string]string
}

func (n *memNonces) SetNonce(_ context.Context, addr, nonce string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.m[addr] = nonce
	return nil
}

func (n *memNonces) TakeNonce(_ context.Context, addr string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.m[addr]
	if !ok {
		return "", errors.New("no nonce")
	}
	delete(n.m, addr)
	return v, nil
}

type fixture struct {
	t      *testing.T
	router *gin.Engine
	now    time.Time
	nonces *memNonces
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{t: t, now: time.Unix(1_000, 0).UTC(), nonces: &memNonces{m: map[string]string{}}}

	engine := governance.New(data.NewMemoryStore(), data.NewMemoryTreasury(nil), nil,
		governance.WithClock(governance.ClockFunc(func() time.Time { return f.now })),
		governance.WithIDGenerator(func() string { return "unit-1" }),
	)
	f.router = New(Deps{
		Config: config.Config{
			JWTSecret:   testSecret,
			JWTTTL:      time.Hour,
			RateLimit:   1000,
			RateWindow:  time.Minute,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Engine:  engine,
		Nonces:  f.nonces,
		Metrics: metrics.New(),
	})
	return f
}

func (f *fixture) do(method, path, as string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		tok, err := issueJWT(as, []byte(testSecret), time.Hour)
		require.NoError(f.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errBody struct {
	Err  string `json:"err"`
	Code string `json:"code"`
}

func TestGovernanceLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/units", "root", map[string]any{
		"name":                "Guild",
		"votingPeriodSec":     100,
		"timelockDelaySec":    50,
		"quorumThresholdBp":   5000,
		"approvalThresholdBp": 5000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	unit := decode[unitView](t, w)
	assert.Equal(t, "unit-1", unit.ID)
	assert.Equal(t, "root", unit.Authority)
	assert.Equal(t, int64(100), unit.VotingPeriodSec)

	for _, addr := range []string{"alice", "bob", "carol"} {
		w = f.do(http.MethodPost, "/v1/units/unit-1/members", "root", map[string]any{"address": addr, "votingPower": 1000})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = f.do(http.MethodPost, "/v1/units/unit-1/proposals", "alice", map[string]any{
		"title":       "Admit <b>dave</b>",
		"description": "adds a member",
		"action":      map[string]any{"kind": "add_member", "member": "dave", "power": 1000},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	prop := decode[proposalView](t, w)
	assert.Equal(t, uint64(0), prop.ID)
	assert.Equal(t, "Admit dave", prop.Title)
	assert.Equal(t, governance.ActionAddMember, prop.Action.Kind)
	assert.NotEmpty(t, prop.ActionHash)

	for _, voter := range []string{"alice", "bob"} {
		w = f.do(http.MethodPost, "/v1/units/unit-1/proposals/0/votes", voter, map[string]any{"kind": "yes"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = f.do(http.MethodPost, "/v1/units/unit-1/proposals/0/votes", "alice", map[string]any{"kind": "no"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_VOTE", decode[errBody](t, w).Code)

	w = f.do(http.MethodPost, "/v1/units/unit-1/proposals/0/queue", "carol", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VOTING_NOT_ENDED", decode[errBody](t, w).Code)

	f.now = f.now.Add(101 * time.Second)
	w = f.do(http.MethodPost, "/v1/units/unit-1/proposals/0/queue", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "succeeded", decode[proposalView](t, w).Status)

	w = f.do(http.MethodPost, "/v1/units/unit-1/proposals/0/execute", "carol", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "TIMELOCK_NOT_EXPIRED", decode[errBody](t, w).Code)

	f.now = f.now.Add(50 * time.Second)
	w = f.do(http.MethodPost, "/v1/units/unit-1/proposals/0/execute", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	executed := decode[proposalView](t, w)
	assert.Equal(t, "executed", executed.Status)
	require.NotNil(t, executed.ExecutedAt)

	w = f.do(http.MethodGet, "/v1/units/unit-1/members/dave", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(1000), decode[memberView](t, w).VotingPower)

	w = f.do(http.MethodGet, "/v1/units/unit-1/proposals/0/votes/bob", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "yes", decode[voteView](t, w).Kind)

	w = f.do(http.MethodGet, "/v1/units/unit-1/proposals", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Proposals []proposalView `json:"proposals"`
	}](t, w)
	assert.Len(t, list.Proposals, 1)
}

func TestDelegationOverHTTP(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/units", "root", map[string]any{
		"name": "Guild", "votingPeriodSec": 10, "quorumThresholdBp": 1, "approvalThresholdBp": 1,
	}).Code)
	for _, addr := range []string{"alice", "bob"} {
		require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/units/unit-1/members", "root",
			map[string]any{"address": addr, "votingPower": 10}).Code)
	}

	w := f.do(http.MethodPost, "/v1/units/unit-1/delegation", "alice", map[string]any{"delegatee": "alice"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMETER", decode[errBody](t, w).Code)

	w = f.do(http.MethodPost, "/v1/units/unit-1/delegation", "alice", map[string]any{"delegatee": "bob"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	d := decode[delegationView](t, w)
	assert.Equal(t, "bob", d.Delegatee)
	assert.Equal(t, uint64(10), d.DelegatedPower)

	w = f.do(http.MethodDelete, "/v1/units/unit-1/delegation", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[memberView](t, w).Delegate)

	w = f.do(http.MethodDelete, "/v1/units/unit-1/delegation", "alice", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_DELEGATION", decode[errBody](t, w).Code)
}

func TestErrorResponses(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/units", "", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/v1/units/missing", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[errBody](t, w).Code)

	w = f.do(http.MethodGet, "/v1/units/missing/proposals/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/v1/units", "root", map[string]any{"name": "Guild", "votingPeriodSec": 10})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMETER", decode[errBody](t, w).Code)

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/units", "root", map[string]any{
		"name": "Guild", "votingPeriodSec": 10, "quorumThresholdBp": 1, "approvalThresholdBp": 1,
	}).Code)
	w = f.do(http.MethodPost, "/v1/units/unit-1/members", "mallory", map[string]any{"address": "mallory", "votingPower": 5})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[errBody](t, w).Code)

	w = f.do(http.MethodPost, "/v1/units/unit-1/proposals", "root", map[string]any{
		"title": "t", "action": map[string]any{"kind": "teleport"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOversizedDurationsRejected(t *testing.T) {
	f := newFixture(t)

	// 18446744074s overflows time.Duration and would wrap to ~290ms.
	w := f.do(http.MethodPost, "/v1/units", "root", map[string]any{
		"name": "Guild", "votingPeriodSec": int64(18446744074), "quorumThresholdBp": 1, "approvalThresholdBp": 1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "INVALID_PARAMETER", decode[errBody](t, w).Code)

	w = f.do(http.MethodPost, "/v1/units", "root", map[string]any{
		"name": "Guild", "votingPeriodSec": 10, "timelockDelaySec": int64(-18446744074), "quorumThresholdBp": 1, "approvalThresholdBp": 1,
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/units", "root", map[string]any{
		"name": "Guild", "votingPeriodSec": maxSeconds, "quorumThresholdBp": 1, "approvalThresholdBp": 1,
	}).Code)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/units/unit-1/members", "root",
		map[string]any{"address": "alice", "votingPower": 10}).Code)

	w = f.do(http.MethodPost, "/v1/units/unit-1/proposals", "alice", map[string]any{
		"title":  "slow down",
		"action": map[string]any{"kind": "config_change", "votingPeriodSec": int64(maxSeconds + 1)},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "INVALID_PARAMETER", decode[errBody](t, w).Code)
}

func TestParamsFromSeconds(t *testing.T) {
	p, err := paramsView{VotingPeriodSec: 60, TimelockDelaySec: 5, QuorumThresholdBp: 1, ApprovalThresholdBp: 2}.toParams()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, p.VotingPeriod)
	assert.Equal(t, 5*time.Second, p.TimelockDelay)

	p, err = paramsView{VotingPeriodSec: maxSeconds}.toParams()
	require.NoError(t, err)
	assert.Positive(t, p.VotingPeriod)

	_, err = paramsView{VotingPeriodSec: maxSeconds + 1}.toParams()
	assert.Error(t, err)
	_, err = paramsView{VotingPeriodSec: 1, TimelockDelaySec: 18446744074}.toParams()
	assert.Error(t, err)

	d, err := seconds("votingPeriodSec", nil)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "", nil).Code)

	w := f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "governance_http_requests_total")
}

func TestAuthChallengeVerify(t *testing.T) {
	f := newFixture(t)
	sk, pk, err := schnorrkel.GenerateKeypair()
	require.NoError(t, err)
	pub := pk.Encode()
	addr := "0x" + hex.EncodeToString(pub[:])

	w := f.do(http.MethodPost, "/v1/auth/challenge", "", map[string]any{"address": addr, "method": "polkadotjs"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	nonce := decode[map[string]string](t, w)["nonce"]
	require.NotEmpty(t, nonce)

	sig, err := sk.Sign(schnorrkel.NewSigningContext([]byte("substrate"), []byte("<Bytes>"+nonce+"</Bytes>")))
	require.NoError(t, err)
	raw := sig.Encode()

	w = f.do(http.MethodPost, "/v1/auth/verify", "", map[string]any{
		"address": addr, "method": "polkadotjs", "signature": "0x" + hex.EncodeToString(raw[:]),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[map[string]string](t, w)["token"])

	// the challenge is single use
	w = f.do(http.MethodPost, "/v1/auth/verify", "", map[string]any{
		"address": addr, "method": "polkadotjs", "signature": "0x" + hex.EncodeToString(raw[:]),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsWrongSigner(t *testing.T) {
	f := newFixture(t)
	_, pk, err := schnorrkel.GenerateKeypair()
	require.NoError(t, err)
	other, _, err := schnorrkel.GenerateKeypair()
	require.NoError(t, err)
	pub := pk.Encode()
	addr := "0x" + hex.EncodeToString(pub[:])

	w := f.do(http.MethodPost, "/v1/auth/challenge", "", map[string]any{"address": addr, "method": "walletconnect"})
	require.Equal(t, http.StatusOK, w.Code)
	nonce := decode[map[string]string](t, w)["nonce"]

	sig, err := other.Sign(schnorrkel.NewSigningContext([]byte("substrate"), []byte(nonce)))
	require.NoError(t, err)
	raw := sig.Encode()

	w = f.do(http.MethodPost, "/v1/auth/verify", "", map[string]any{
		"address": addr, "method": "walletconnect", "signature": hex.EncodeToString(raw[:]),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.requests)
}
