package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/dao-governance/src/api/config"
	"github.com/stake-plus/dao-governance/src/governance"
	"github.com/stake-plus/dao-governance/src/metrics"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Config  config.Config
	Engine  *governance.Engine
	Nonces  NonceStore
	Metrics *metrics.Metrics
	Limiter *RateLimiter
	Log     *zap.Logger
	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

// New builds the gin engine serving the governance API.
func New(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if len(d.Config.CORSOrigins) == 0 {
		d.Config.CORSOrigins = []string{"http://localhost:3000"}
	}
	if d.Limiter == nil {
		d.Limiter = NewRateLimiter(d.Config.RateLimit, d.Config.RateWindow)
	}

	g := gin.New()
	g.Use(requestLogger(d.Log), gin.Recovery())
	if d.Metrics != nil {
		g.Use(d.Metrics.Middleware())
	}
	attachRoutes(g, d)
	return g
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if addr := caller(c); addr != "" {
			fields = append(fields, zap.String("caller", addr))
		}
		if len(c.Errors) > 0 {
			log.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		log.Debug("request", fields...)
	}
}

func attachRoutes(r *gin.Engine, d Deps) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "err": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	secret := []byte(d.Config.JWTSecret)
	authH := NewAuth(d.Nonces, secret, d.Config.JWTTTL, d.Log)
	govH := NewGovernance(d.Engine)
	limit := RateLimitMiddleware(d.Limiter)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/challenge", limit, authH.Challenge)
		v1.POST("/auth/verify", limit, authH.Verify)

		v1.GET("/units/:unit", govH.GetUnit)
		v1.GET("/units/:unit/members/:addr", govH.GetMember)
		v1.GET("/units/:unit/proposals", govH.ListProposals)
		v1.GET("/units/:unit/proposals/:id", govH.GetProposal)
		v1.GET("/units/:unit/proposals/:id/votes/:voter", govH.GetVote)

		secured := v1.Group("", JWTMiddleware(secret), limit)
		secured.POST("/units", govH.CreateUnit)
		secured.POST("/units/:unit/members", govH.AddMember)
		secured.POST("/units/:unit/proposals", govH.CreateProposal)
		secured.POST("/units/:unit/proposals/:id/votes", govH.CastVote)
		secured.POST("/units/:unit/proposals/:id/queue", transition(d.Engine.QueueProposal))
		secured.POST("/units/:unit/proposals/:id/execute", transition(d.Engine.ExecuteProposal))
		secured.POST("/units/:unit/proposals/:id/cancel", transition(d.Engine.CancelProposal))
		secured.POST("/units/:unit/delegation", govH.Delegate)
		secured.DELETE("/units/:unit/delegation", govH.RevokeDelegation)
	}
}
