package rest_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileNewPlayer(t *testing.T) {
	s := newTestServer(t)

	w := s.getAuth(t, "/api/players/u1/profile")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "u1", resp["discord_id"])
	assert.EqualValues(t, 0, resp["balance"])
	assert.EqualValues(t, 0, resp["collection_count"])
	assert.Equal(t, true, resp["daily_available"])
}

func TestClaimDaily(t *testing.T) {
	s := newTestServer(t)

	w := s.postAuth(t, "/api/players/u1/daily", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 100, decode(t, w)["amount"])

	// Second claim inside the window is rejected with the retry time.
	w2 := s.postAuth(t, "/api/players/u1/daily", nil)
	require.Equal(t, http.StatusConflict, w2.Code)
	assert.NotEmpty(t, decode(t, w2)["next_at"])
}

func TestTransferCoins(t *testing.T) {
	s := newTestServer(t)
	s.fund(t, "alice", 500)

	w := s.postAuth(t, "/api/players/transfer", map[string]interface{}{
		"from_discord_id": "alice",
		"to_discord_id":   "bob",
		"amount":          200,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 200, decode(t, w)["amount"])

	assert.EqualValues(t, 300, decode(t, s.getAuth(t, "/api/players/alice/profile"))["balance"])
	assert.EqualValues(t, 200, decode(t, s.getAuth(t, "/api/players/bob/profile"))["balance"])
}

func TestTransferInsufficientFunds(t *testing.T) {
	s := newTestServer(t)
	s.fund(t, "alice", 100)

	w := s.postAuth(t, "/api/players/transfer", map[string]interface{}{
		"from_discord_id": "alice",
		"to_discord_id":   "bob",
		"amount":          500,
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.EqualValues(t, 100, decode(t, s.getAuth(t, "/api/players/alice/profile"))["balance"])
}

func TestTransferToSelfRejected(t *testing.T) {
	s := newTestServer(t)
	s.fund(t, "alice", 100)

	w := s.postAuth(t, "/api/players/transfer", map[string]interface{}{
		"from_discord_id": "alice",
		"to_discord_id":   "alice",
		"amount":          50,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuyPerkInsufficientFunds(t *testing.T) {
	s := newTestServer(t)

	w := s.postAuth(t, "/api/players/u1/perks", map[string]string{"perk": "roll"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestBuyPerkRoll(t *testing.T) {
	s := newTestServer(t)
	s.fund(t, "u1", 20000)

	w := s.postAuth(t, "/api/players/u1/perks", map[string]string{"perk": "roll"})
	require.Equal(t, http.StatusOK, w.Code)

	p := decode(t, s.getAuth(t, "/api/players/u1/profile"))
	assert.EqualValues(t, 0, p["balance"])
	assert.EqualValues(t, 5, p["bonus_rolls"])
}

func TestBuyPerkUnknownKind(t *testing.T) {
	s := newTestServer(t)

	w := s.postAuth(t, "/api/players/u1/perks", map[string]string{"perk": "teleport"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
