// Package clients holds the outbound HTTP clients to the three internal
// RPC collaborators (Catalogue, Players, Game Engine), grounded on the
// teacher's internal/payment.Client shape: a configured baseURL and an
// *http.Client{Timeout: ...} built once at startup.
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
	"github.com/playmatatu/duelcore/internal/models"
)

// CatalogueClient validates a proposed deck against the card catalogue
// and returns the authoritative stats for each card.
type CatalogueClient interface {
	ValidateDeck(ctx context.Context, cardIDs []int64) (models.Deck, error)
}

type httpCatalogueClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCatalogueClient builds a CatalogueClient bound to baseURL with the
// given request timeout.
func NewCatalogueClient(baseURL string, timeout time.Duration) CatalogueClient {
	return &httpCatalogueClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type cardValidationRequest struct {
	Data []int64 `json:"data"`
}

type cardValidationCard struct {
	ID    int64              `json:"id"`
	Stats models.CardStats `json:"stats"`
}

type cardValidationResponse struct {
	Data []cardValidationCard `json:"data"`
}

func (c *httpCatalogueClient) ValidateDeck(ctx context.Context, cardIDs []int64) (models.Deck, error) {
	body, err := json.Marshal(cardValidationRequest{Data: cardIDs})
	if err != nil {
		return nil, apierr.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/cards/validation", bytes.NewReader(body))
	if err != nil {
		return nil, apierr.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.NewUpstream("CATALOGUE_UNREACHABLE", "unable to reach catalogue service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.NewUpstream("CATALOGUE_REJECTED", fmt.Sprintf("catalogue validation failed (%d)", resp.StatusCode), nil)
	}

	var parsed cardValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apierr.NewUpstream("CATALOGUE_BAD_RESPONSE", "malformed catalogue response", err)
	}
	if len(parsed.Data) == 0 {
		return nil, apierr.NewValidation("DECK_REJECTED", "deck rejected by catalogue service")
	}

	deck := make(models.Deck, len(parsed.Data))
	for _, card := range parsed.Data {
		deck[card.ID] = card.Stats
	}
	return deck, nil
}
