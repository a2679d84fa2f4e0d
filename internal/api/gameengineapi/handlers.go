package gameengineapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/playmatatu/duelcore/internal/apierr"
	"github.com/playmatatu/duelcore/internal/config"
	"github.com/playmatatu/duelcore/internal/gameengine"
	"github.com/playmatatu/duelcore/internal/middleware"
	"github.com/playmatatu/duelcore/internal/models"
)

func parseIDParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, apierr.NewValidation("INVALID_ID", "invalid id in path")
	}
	return id, nil
}

func parsePagination(c *gin.Context, maxLimit int) (limit, offset int) {
	limit = maxLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxLimit {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

type createMatchRequest struct {
	Player1ID int64 `json:"player1_id" binding:"required"`
	Player2ID int64 `json:"player2_id" binding:"required"`
}

func createMatchHandler(svc *gameengine.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createMatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.WriteJSON(c, apierr.NewValidation("INVALID_BODY", "player1_id and player2_id are required"))
			return
		}
		match, err := svc.CreateMatch(c.Request.Context(), req.Player1ID, req.Player2ID)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": match.ID})
	}
}

type submitDeckRequest struct {
	CardIDs []int64 `json:"card_ids" binding:"required"`
}

func submitDeckHandler(svc *gameengine.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		matchID, err := parseIDParam(c, "id")
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		playerID, ok := middleware.CallerID(c)
		if !ok {
			apierr.WriteJSON(c, apierr.NewPermission("UNAUTHENTICATED", "missing caller identity"))
			return
		}
		var req submitDeckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.WriteJSON(c, apierr.NewValidation("INVALID_BODY", "card_ids is required"))
			return
		}

		match, err := svc.SubmitDeck(c.Request.Context(), matchID, playerID, req.CardIDs)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, match.ToSnapshot(nil))
	}
}

type submitMoveRequest struct {
	CardID int64 `json:"card_id" binding:"required"`
}

func submitMoveHandler(svc *gameengine.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		matchID, err := parseIDParam(c, "id")
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		roundNumber, err := strconv.Atoi(c.Param("round"))
		if err != nil {
			apierr.WriteJSON(c, apierr.NewValidation("INVALID_ROUND", "invalid round number in path"))
			return
		}
		playerID, ok := middleware.CallerID(c)
		if !ok {
			apierr.WriteJSON(c, apierr.NewPermission("UNAUTHENTICATED", "missing caller identity"))
			return
		}
		var req submitMoveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.WriteJSON(c, apierr.NewValidation("INVALID_BODY", "card_id is required"))
			return
		}

		match, err := svc.SubmitMove(c.Request.Context(), matchID, playerID, roundNumber, req.CardID)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, match.ToSnapshot(nil))
	}
}

func getMatchHandler(svc *gameengine.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		matchID, err := parseIDParam(c, "id")
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		requesterID, ok := middleware.CallerID(c)
		if !ok {
			apierr.WriteJSON(c, apierr.NewPermission("UNAUTHENTICATED", "missing caller identity"))
			return
		}
		snapshot, err := svc.GetMatch(c.Request.Context(), matchID, requesterID)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

func getRoundStatusHandler(svc *gameengine.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		matchID, err := parseIDParam(c, "id")
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		requesterID, ok := middleware.CallerID(c)
		if !ok {
			apierr.WriteJSON(c, apierr.NewPermission("UNAUTHENTICATED", "missing caller identity"))
			return
		}
		status, err := svc.GetCurrentRoundStatus(c.Request.Context(), matchID, requesterID)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func getHistoryHandler(svc *gameengine.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID, err := parseIDParam(c, "id")
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		requesterID, ok := middleware.CallerID(c)
		if !ok {
			apierr.WriteJSON(c, apierr.NewPermission("UNAUTHENTICATED", "missing caller identity"))
			return
		}
		limit, offset := parsePagination(c, cfg.HistoryMaxLimit)

		var status *models.MatchStatus
		if raw := c.Query("status"); raw != "" {
			s := models.MatchStatus(raw)
			status = &s
		}

		page, err := svc.GetPlayerHistory(c.Request.Context(), playerID, requesterID, status, limit, offset)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getLeaderboardHandler(svc *gameengine.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := parsePagination(c, cfg.LeaderboardMaxLimit)
		entries, err := svc.GetLeaderboard(c.Request.Context(), limit, offset)
		if err != nil {
			apierr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
	}
}
