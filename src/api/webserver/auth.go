package webserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NonceStore keeps the pending login challenge per address.
type NonceStore interface {
	SetNonce(ctx context.Context, addr, nonce string) error
	TakeNonce(ctx context.Context, addr string) (string, error)
}

type Auth struct {
	nonces    NonceStore
	jwtSecret []byte
	ttl       time.Duration
	log       *zap.Logger
}

func NewAuth(nonces NonceStore, secret []byte, ttl time.Duration, log *zap.Logger) Auth {
	return Auth{nonces: nonces, jwtSecret: secret, ttl: ttl, log: log}
}

func randomHex32() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required,min=32,max=128"`
		Method  string `json:"method"  binding:"required,oneof=walletconnect polkadotjs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := decodeSS58(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid address format"})
		return
	}

	nonce, err := randomHex32()
	if err == nil {
		err = a.nonces.SetNonce(c, req.Address, nonce)
	}
	if err != nil {
		a.log.Error("create auth challenge", zap.String("addr", req.Address), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to create challenge"})
		return
	}
	a.log.Debug("auth challenge", zap.String("addr", req.Address), zap.String("ip", c.ClientIP()), zap.String("method", req.Method))
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (a Auth) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"   binding:"required"`
		Method    string `json:"method"    binding:"required,oneof=walletconnect polkadotjs"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	nonce, err := a.nonces.TakeNonce(c, req.Address)
	if err != nil || nonce == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "challenge expired or not found"})
		return
	}
	if err := verifySignature(req.Address, req.Signature, nonce); err != nil {
		a.log.Info("auth signature rejected", zap.String("addr", req.Address), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad signature"})
		return
	}

	token, err := issueJWT(req.Address, a.jwtSecret, a.ttl)
	if err != nil {
		a.log.Error("issue jwt", zap.String("addr", req.Address), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
