package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/playmatatu/duelcore/internal/apierr"
)

// GameEngineClient asks the Game Engine to create a match for a paired
// couple of players, grounded on the original's call_game_engine.
type GameEngineClient interface {
	CreateMatch(ctx context.Context, player1ID, player2ID int64) (matchID int64, err error)
}

type httpGameEngineClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGameEngineClient builds a GameEngineClient bound to baseURL with the
// given request timeout.
func NewGameEngineClient(baseURL string, timeout time.Duration) GameEngineClient {
	return &httpGameEngineClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type createMatchRequest struct {
	Player1ID int64 `json:"player1_id"`
	Player2ID int64 `json:"player2_id"`
}

type createMatchResponse struct {
	ID int64 `json:"id"`
}

func (c *httpGameEngineClient) CreateMatch(ctx context.Context, player1ID, player2ID int64) (int64, error) {
	body, err := json.Marshal(createMatchRequest{Player1ID: player1ID, Player2ID: player2ID})
	if err != nil {
		return 0, apierr.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/matches/create", bytes.NewReader(body))
	if err != nil {
		return 0, apierr.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apierr.NewUpstream("GAME_ENGINE_UNAVAILABLE", "game engine unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, apierr.NewUpstream("GAME_ENGINE_ERROR", fmt.Sprintf("failed to create match (%d)", resp.StatusCode), nil)
	}

	var parsed createMatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, apierr.NewUpstream("GAME_ENGINE_BAD_RESPONSE", "malformed game engine response", err)
	}
	return parsed.ID, nil
}
