package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shoreline-games/shorebot/game/account"
	"github.com/shoreline-games/shorebot/game/arena"
	"github.com/shoreline-games/shorebot/game/auction"
	"github.com/shoreline-games/shorebot/game/catalog"
	"github.com/shoreline-games/shorebot/game/collection"
	"github.com/shoreline-games/shorebot/game/ledger"
	"github.com/shoreline-games/shorebot/game/ratewindow"
	"github.com/shoreline-games/shorebot/game/trade"
)

// respondErr maps service errors to HTTP responses. Typed errors carry
// extra fields the gateway needs to render a useful message; anything
// unrecognized becomes a 500 and is assumed to be logged where it happened.
func respondErr(c *gin.Context, err error) {
	var rle *account.RateLimitedError
	if errors.As(err, &rle) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":    "rate limited",
			"reset_at": rle.ResetAt,
		})
		return
	}
	var dnr *account.DailyNotReadyError
	if errors.As(err, &dnr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "daily reward not ready",
			"next_at": dnr.NextAt,
		})
		return
	}
	var ace *arena.AlreadyClaimedError
	if errors.As(err, &ace) {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "already claimed",
			"claimed_by": ace.By,
		})
		return
	}

	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, collection.ErrNotFound),
		errors.Is(err, arena.ErrNotFound),
		errors.Is(err, auction.ErrNotFound),
		errors.Is(err, trade.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, catalog.ErrNoneAvailable):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ratewindow.ErrNoBonusAvailable):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, arena.ErrExpired),
		errors.Is(err, auction.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, auction.ErrAlreadyListed),
		errors.Is(err, auction.ErrNotActive),
		errors.Is(err, collection.ErrListed),
		errors.Is(err, trade.ErrNotPending),
		errors.Is(err, trade.ErrItemUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrSelfBid),
		errors.Is(err, trade.ErrSelfTrade),
		errors.Is(err, account.ErrUnknownPerk),
		errors.Is(err, catalog.ErrDuplicateName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auction.ErrNotOwner),
		errors.Is(err, trade.ErrNotOwner),
		errors.Is(err, trade.ErrNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, auction.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
