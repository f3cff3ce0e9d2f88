package webserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/stake-plus/dao-governance/src/governance"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 10000
	maxCommentLen     = 500
)

// Governance exposes the engine over HTTP.
type Governance struct {
	engine    *governance.Engine
	sanitizer *bluemonday.Policy
}

func NewGovernance(engine *governance.Engine) Governance {
	return Governance{engine: engine, sanitizer: bluemonday.StrictPolicy()}
}

func (g Governance) clean(s string, max int, field string) (string, error) {
	s = g.sanitizer.Sanitize(s)
	if !utf8.ValidString(s) {
		return "", errors.New(field + " contains invalid characters")
	}
	if len(s) > max {
		return "", errors.New(field + " is too long")
	}
	return s, nil
}

func proposalID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, errors.New("invalid proposal id"))
		return 0, false
	}
	return id, true
}

func (g Governance) CreateUnit(c *gin.Context) {
	var req struct {
		Name     string `json:"name"     binding:"required,max=255"`
		Treasury string `json:"treasury" binding:"max=128"`
		paramsView
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	name, err := g.clean(req.Name, maxTitleLen, "name")
	if err != nil {
		badRequest(c, err)
		return
	}
	params, err := req.toParams()
	if err != nil {
		badRequest(c, err)
		return
	}

	u, err := g.engine.CreateUnit(c, caller(c), governance.NewUnit{
		Name:     name,
		Treasury: req.Treasury,
		Params:   params,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewUnit(u))
}

func (g Governance) GetUnit(c *gin.Context) {
	u, err := g.engine.Unit(c, c.Param("unit"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewUnit(u))
}

func (g Governance) AddMember(c *gin.Context) {
	var req struct {
		Address     string `json:"address"     binding:"required,max=128"`
		VotingPower uint64 `json:"votingPower"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := g.engine.AddMember(c, caller(c), c.Param("unit"), req.Address, req.VotingPower)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewMember(m))
}

func (g Governance) GetMember(c *gin.Context) {
	m, err := g.engine.Member(c, c.Param("unit"), c.Param("addr"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewMember(m))
}

func (g Governance) CreateProposal(c *gin.Context) {
	var req struct {
		Title       string     `json:"title"       binding:"required"`
		Description string     `json:"description"`
		Action      actionBody `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	title, err := g.clean(req.Title, maxTitleLen, "title")
	if err != nil {
		badRequest(c, err)
		return
	}
	desc, err := g.clean(req.Description, maxDescriptionLen, "description")
	if err != nil {
		badRequest(c, err)
		return
	}
	action, err := req.Action.toAction()
	if err != nil {
		badRequest(c, err)
		return
	}

	p, err := g.engine.CreateProposal(c, caller(c), c.Param("unit"), governance.NewProposal{
		Title:       title,
		Description: desc,
		Action:      action,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewProposal(p))
}

func (g Governance) ListProposals(c *gin.Context) {
	ps, err := g.engine.ListProposals(c, c.Param("unit"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]proposalView, 0, len(ps))
	for i := range ps {
		out = append(out, viewProposal(&ps[i]))
	}
	c.JSON(http.StatusOK, gin.H{"proposals": out})
}

func (g Governance) GetProposal(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	p, err := g.engine.Proposal(c, c.Param("unit"), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewProposal(p))
}

func (g Governance) CastVote(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	var req struct {
		Kind    string `json:"kind"    binding:"required,oneof=yes no abstain"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	comment, err := g.clean(req.Comment, maxCommentLen, "comment")
	if err != nil {
		badRequest(c, err)
		return
	}

	v, err := g.engine.CastVote(c, caller(c), c.Param("unit"), id, governance.VoteKind(req.Kind), comment)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewVote(v))
}

func (g Governance) GetVote(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}
	v, err := g.engine.Vote(c, c.Param("unit"), id, c.Param("voter"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewVote(v))
}

type proposalOp func(ctx context.Context, caller, unitID string, id uint64) (*governance.Proposal, error)

// transition serves the queue, execute and cancel routes.
func transition(op proposalOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := proposalID(c)
		if !ok {
			return
		}
		p, err := op(c, caller(c), c.Param("unit"), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewProposal(p))
	}
}

func (g Governance) Delegate(c *gin.Context) {
	var req struct {
		Delegatee string `json:"delegatee" binding:"required,max=128"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := g.engine.DelegateVote(c, caller(c), c.Param("unit"), req.Delegatee)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewDelegation(d))
}

func (g Governance) RevokeDelegation(c *gin.Context) {
	m, err := g.engine.RevokeDelegation(c, caller(c), c.Param("unit"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewMember(m))
}
