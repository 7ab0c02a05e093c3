package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"campaignbot/types"
)

// Source supplies the active campaign backlog. Sources are read-only:
// the orchestrator never mutates campaigns, only its own checkpoint.
type Source interface {
	Fetch(ctx context.Context) ([]types.Campaign, error)
}

// StaticSource serves a fixed backlog. Used for fixtures and tests.
type StaticSource struct {
	Campaigns []types.Campaign
}

func (s *StaticSource) Fetch(ctx context.Context) ([]types.Campaign, error) {
	out := make([]types.Campaign, len(s.Campaigns))
	copy(out, s.Campaigns)
	return out, nil
}

// HTTPSource fetches the backlog from a campaign service.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]types.Campaign, error) {
	url := fmt.Sprintf("%s/campaigns/active", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create campaigns request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("campaign service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("campaign service returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Campaigns []types.Campaign `json:"campaigns"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode campaigns response: %w", err)
	}
	return out.Campaigns, nil
}
