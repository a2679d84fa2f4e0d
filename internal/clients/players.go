package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// PlayersClient validates a user's profile and friendship status. Both
// calls are fail-closed: any transport error or non-2xx response is
// treated as a denial, never a pass, per the matchmaking coordinator's
// propagation policy.
type PlayersClient interface {
	ValidateProfile(ctx context.Context, userID int64) bool
	ValidateFriendship(ctx context.Context, userID, otherID int64) bool
}

type httpPlayersClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPlayersClient builds a PlayersClient bound to baseURL with the given
// request timeout.
func NewPlayersClient(baseURL string, timeout time.Duration) PlayersClient {
	return &httpPlayersClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type validationResult struct {
	Valid bool `json:"valid"`
}

func (c *httpPlayersClient) ValidateProfile(ctx context.Context, userID int64) bool {
	return c.postValidation(ctx, "/internal/players/validation", map[string]int64{"user_id": userID})
}

func (c *httpPlayersClient) ValidateFriendship(ctx context.Context, userID, otherID int64) bool {
	return c.postValidation(ctx, "/internal/players/friendship/validation", map[string]int64{
		"user_id":  userID,
		"other_id": otherID,
	})
}

func (c *httpPlayersClient) postValidation(ctx context.Context, path string, payload map[string]int64) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result validationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}
	return result.Valid
}
