package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/shoreline-games/shorebot/cache"
	"github.com/shoreline-games/shorebot/config"
	mw "github.com/shoreline-games/shorebot/middleware"
)

// AuthHandler issues service tokens to gateway processes that present the
// shared gateway key. Only the bcrypt hash of the key is configured on the
// server side.
type AuthHandler struct {
	cache cache.Cache
	sec   config.SecurityConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(c cache.Cache, sec config.SecurityConfig) *AuthHandler {
	return &AuthHandler{cache: c, sec: sec}
}

type tokenRequest struct {
	ClientID   string `json:"client_id" binding:"required,min=2,max=64"`
	GatewayKey string `json:"gateway_key" binding:"required,min=8,max=128"`
}

// Token handles POST /api/auth/token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.sec.GatewayKeyHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway auth disabled: set security.gateway_key_hash"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.sec.GatewayKeyHash), []byte(req.GatewayKey)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid gateway key"})
		return
	}

	token, err := mw.GenerateToken(req.ClientID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// Store session in cache as a simple KV entry so Exists() works uniformly.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Set(ctx, "session:"+token, req.ClientID, h.sec.JWTTTLH)

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"client_id":  req.ClientID,
		"expires_in": int64(h.sec.JWTTTLH.Seconds()),
	})
}

// Revoke handles POST /api/auth/revoke. It invalidates the presented token.
func (h *AuthHandler) Revoke(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, "session:"+tokenStr)
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}
