package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shoreline-games/shorebot/api/rest"
	"github.com/shoreline-games/shorebot/audit"
	"github.com/shoreline-games/shorebot/config"
	"github.com/shoreline-games/shorebot/game/account"
	"github.com/shoreline-games/shorebot/game/arena"
	"github.com/shoreline-games/shorebot/game/auction"
	"github.com/shoreline-games/shorebot/game/catalog"
	"github.com/shoreline-games/shorebot/game/collection"
	"github.com/shoreline-games/shorebot/game/events"
	"github.com/shoreline-games/shorebot/game/leaderboard"
	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/game/ratewindow"
	"github.com/shoreline-games/shorebot/game/trade"
	mw "github.com/shoreline-games/shorebot/middleware"
	"github.com/shoreline-games/shorebot/scheduler"
	"github.com/shoreline-games/shorebot/testutil"
)

const (
	testGatewayKey = "gateway-secret-key"
	testAdminKey   = "test-admin-key"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// server bundles the wired engine with the underlying services so tests can
// seed data directly.
type server struct {
	engine   *gin.Engine
	token    string
	ledger   *ledger.Service
	accounts *account.Service
	catalog  *catalog.Service
	col      *collection.Service
	arena    *arena.Service
	auctions *auction.Service
	trades   *trade.Service
}

func newTestServer(t *testing.T) *server {
	t.Helper()

	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	hash, err := bcrypt.GenerateFromPassword([]byte(testGatewayKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{AdminKey: testAdminKey},
		Game: config.GameConfig{
			RollLimit:   10,
			RollWindow:  time.Hour,
			ClaimLimit:  1,
			ClaimWindow: 2 * time.Hour,
		},
		Security: config.SecurityConfig{
			JWTSecret:      "test-secret",
			JWTTTLH:        72 * time.Hour,
			GatewayKeyHash: string(hash),
		},
	}

	pub := events.NewPublisher(c, ps, logger)
	led := ledger.NewService(db, logger)
	accounts := account.NewService(db, led, account.Config{
		RollWindow:       ratewindow.Window{Limit: 10, Duration: time.Hour},
		ClaimWindow:      ratewindow.Window{Limit: 1, Duration: 2 * time.Hour},
		DailyReward:      100,
		DailyWindow:      24 * time.Hour,
		BonusClaimPrice:  30000,
		BonusClaimAmount: 1,
		BonusRollPrice:   20000,
		BonusRollAmount:  5,
	}, logger)
	cat := catalog.NewService(db, nil, rand.New(rand.NewSource(1)), logger)
	col := collection.NewService(db, led, collection.Config{
		UpgradeBaseCost:  50,
		UpgradeValueRate: 0.20,
	}, logger)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	arenaSvc := arena.NewService(accounts, cat, col, sched, pub, time.Minute, logger)
	auctions := auction.NewService(db, c, led, col, pub, auction.Config{
		MinStartingPrice: 100,
		DefaultDuration:  30 * time.Minute,
	}, logger)
	trades := trade.NewService(db, led, col, pub, logger)
	board := leaderboard.NewService(db, c, 100, logger)
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(nil) })

	r := gin.New()
	r.Use(mw.TraceID())
	rest.RegisterRoutes(r, rest.Deps{
		DB:         db,
		Cache:      c,
		PubSub:     ps,
		Ledger:     led,
		Accounts:   accounts,
		Arena:      arenaSvc,
		Auctions:   auctions,
		Catalog:    cat,
		Collection: col,
		Trades:     trades,
		Board:      board,
		Events:     pub,
		Audit:      auditSvc,
		Sched:      sched,
		Cfg:        cfg,
		Logger:     logger,
	})

	s := &server{
		engine:   r,
		ledger:   led,
		accounts: accounts,
		catalog:  cat,
		col:      col,
		arena:    arenaSvc,
		auctions: auctions,
		trades:   trades,
	}
	s.token = s.issueToken(t, "gateway-1")
	return s
}

func (s *server) issueToken(t *testing.T, clientID string) string {
	t.Helper()
	w := s.post(t, "/api/auth/token", map[string]string{
		"client_id":   clientID,
		"gateway_key": testGatewayKey,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["token"].(string)
}

// post sends an unauthenticated JSON POST.
func (s *server) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, path, body, "")
}

// postAuth sends an authenticated JSON POST.
func (s *server) postAuth(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, path, body, "Bearer "+s.token)
}

// getAuth sends an authenticated GET.
func (s *server) getAuth(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodGet, path, nil, "Bearer "+s.token)
}

// doAdmin sends a request carrying the X-Admin-Key header.
func (s *server) doAdmin(t *testing.T, method, path string, body interface{}, adminKey string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", adminKey)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) do(t *testing.T, method, path string, body interface{}, auth string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// seedCharacter adds one catalog entry directly through the service.
func (s *server) seedCharacter(t *testing.T, name string, rank int) int64 {
	t.Helper()
	ch, err := s.catalog.Add(context.Background(), name, "Test Series", "", "", rank)
	require.NoError(t, err)
	return ch.ID
}

// fund credits a player's balance, creating the account if needed.
func (s *server) fund(t *testing.T, discordID string, amount int64) {
	t.Helper()
	acct, err := s.ledger.GetOrCreate(context.Background(), discordID)
	require.NoError(t, err)
	require.NoError(t, s.ledger.Credit(context.Background(), acct.ID, amount))
}
