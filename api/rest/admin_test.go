package rest_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *server) admin(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAdmin(t, method, path, body, testAdminKey)
}

func TestAdminAuthMissingKey(t *testing.T) {
	s := newTestServer(t)

	w := s.doAdmin(t, http.MethodGet, "/api/admin/metrics", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w2 := s.doAdmin(t, http.MethodGet, "/api/admin/metrics", nil, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}

func TestAdminAddCharacter(t *testing.T) {
	s := newTestServer(t)

	w := s.admin(t, http.MethodPost, "/api/admin/characters", map[string]interface{}{
		"name":   "Rem",
		"series": "Re:Zero",
		"rank":   1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "Rem", resp["name"])
	v := resp["value"].(float64)
	assert.GreaterOrEqual(t, v, float64(5000))
	assert.LessOrEqual(t, v, float64(10000))

	// Duplicate names are rejected case-insensitively.
	w2 := s.admin(t, http.MethodPost, "/api/admin/characters", map[string]interface{}{
		"name":   "rem",
		"series": "Re:Zero",
		"rank":   2,
	})
	assert.Equal(t, http.StatusBadRequest, w2.Code)
}

func TestAdminRenameCharacter(t *testing.T) {
	s := newTestServer(t)
	s.seedCharacter(t, "Remu", 1)

	w := s.admin(t, http.MethodPost, "/api/admin/characters/rename", map[string]string{
		"name":     "remu",
		"new_name": "Rem",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Rem", decode(t, w)["name"])
}

func TestAdminGrantBonus(t *testing.T) {
	s := newTestServer(t)

	w := s.admin(t, http.MethodPost, "/api/admin/bonus", map[string]interface{}{
		"discord_id": "u1",
		"kind":       "roll",
		"count":      3,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p := decode(t, s.getAuth(t, "/api/players/u1/profile"))
	assert.EqualValues(t, 3, p["bonus_rolls"])
}

func TestAdminMetrics(t *testing.T) {
	s := newTestServer(t)
	s.giveCharacter(t, "u1", "Rem", 1)

	w := s.admin(t, http.MethodGet, "/api/admin/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.EqualValues(t, 1, resp["accounts"])
	assert.EqualValues(t, 1, resp["characters"])
	assert.EqualValues(t, 1, resp["owned_items"])
}

func TestAdminLiquidate(t *testing.T) {
	s := newTestServer(t)
	s.giveCharacter(t, "u1", "Rem", 1)
	s.giveCharacter(t, "u2", "Emilia", 2)

	w := s.admin(t, http.MethodPost, "/api/admin/liquidate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.EqualValues(t, 2, resp["owners"])
	assert.EqualValues(t, 2, resp["items"])

	for _, who := range []string{"u1", "u2"} {
		p := decode(t, s.getAuth(t, "/api/players/"+who+"/profile"))
		assert.EqualValues(t, 0, p["collection_count"], who)
		assert.Greater(t, p["balance"].(float64), float64(0), who)
	}
}

func TestAdminLeaderboardRefresh(t *testing.T) {
	s := newTestServer(t)
	s.fund(t, "rich", 5000)
	s.fund(t, "poor", 10)

	w := s.admin(t, http.MethodPost, "/api/admin/leaderboard/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["entries"])

	lb := decode(t, s.getAuth(t, "/api/leaderboard"))
	entries := lb["entries"].([]interface{})
	require.Len(t, entries, 2)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "rich", first["discord_id"])
}
