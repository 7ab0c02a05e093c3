package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"campaignbot/types"
)

// PipelineWorker calls the external multi-stage generation service
// over HTTP. The service owns prompt design, media composition and
// persistence; we only send the unit description and read back the
// opaque result.
type PipelineWorker struct {
	baseURL    string
	options    types.ContentOptions
	httpClient *http.Client
}

// NewPipelineWorker builds a worker against the generation service at
// baseURL.
func NewPipelineWorker(baseURL string, options types.ContentOptions) *PipelineWorker {
	return &PipelineWorker{
		baseURL: baseURL,
		options: options,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type generateRequest struct {
	CampaignID    string               `json:"campaign_id"`
	CampaignTitle string               `json:"campaign_title"`
	ContentType   string               `json:"content_type"`
	Identity      string               `json:"identity"`
	Options       types.ContentOptions `json:"options"`
}

type generateResponse struct {
	ContentID string   `json:"content_id"`
	MediaRefs []string `json:"media_refs"`
	Error     string   `json:"error,omitempty"`
}

func (w *PipelineWorker) Generate(ctx context.Context, campaign types.Campaign, contentType, identity string) (*types.GenerationResult, error) {
	payload := generateRequest{
		CampaignID:    campaign.ID,
		CampaignTitle: campaign.Title,
		ContentType:   contentType,
		Identity:      identity,
		Options:       w.options,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/generate", w.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generation service returned %d: %s", resp.StatusCode, string(body))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("generation failed: %s", out.Error)
	}

	return &types.GenerationResult{
		ContentID: out.ContentID,
		MediaRefs: out.MediaRefs,
	}, nil
}
