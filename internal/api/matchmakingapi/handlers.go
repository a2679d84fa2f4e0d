package matchmakingapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/matchmaking"
	"github.com/playmatatu/duelcore/internal/middleware"
	"github.com/playmatatu/duelcore/internal/tokenstore"
)

func callerID(c *gin.Context) (int64, error) {
	id, ok := middleware.CallerID(c)
	if !ok {
		return 0, apierr.NewPermission("UNAUTHENTICATED", "missing caller identity")
	}
	return id, nil
}

func enqueueHandler(coordinator *matchmaking.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}

		result, err := coordinator.Enqueue(c.Request.Context(), userID)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}

		body := gin.H{"status": result.Status, "queue_token": result.QueueToken}
		if result.Status == tokenstore.StatusMatched {
			body["match_id"] = result.MatchID
			body["opponent_id"] = result.OpponentID
		}
		c.JSON(http.StatusOK, body)
	}
}

func statusHandler(coordinator *matchmaking.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		payload, err := coordinator.Status(c.Request.Context(), token)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

type dequeueRequest struct {
	QueueToken string `json:"queue_token" binding:"required"`
}

func dequeueHandler(coordinator *matchmaking.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}

		var req dequeueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.WriteJSON(c, apierr.NewValidation("INVALID_BODY", "queue_token is required"))
			return
		}

		err = coordinator.Dequeue(c.Request.Context(), userID, req.QueueToken)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"status": "Removed"})
			return
		}

		var tooLate *matchmaking.TooLateError
		if errors.As(err, &tooLate) {
			c.JSON(http.StatusConflict, gin.H{
				"status":      "TooLate",
				"msg":         "already matched before the dequeue request landed",
				"match_id":    tooLate.MatchID,
				"opponent_id": tooLate.OpponentID,
				"queue_token": tooLate.QueueToken,
			})
			return
		}
		apierr.WriteJSON(c, err)
	}
}
