package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"campaignbot/content"
	"campaignbot/types"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/google/uuid"
)

// CohereWorker generates text-only content directly through the
// Cohere Chat API and persists the result to the content store, for
// deployments without an external generation service. Media content
// types still need the pipeline; this worker produces no media refs.
type CohereWorker struct {
	client  *cohereclient.Client
	model   string
	options types.ContentOptions
	sink    content.Store
}

// NewCohereWorker builds a worker from a COHERE_API_KEY-style token.
// sink receives the generated record so the persisted verification
// check can find it.
func NewCohereWorker(apiKey, model string, options types.ContentOptions, sink content.Store) *CohereWorker {
	if model == "" {
		model = "command-r-08-2024"
	}
	// Force HTTP/1.1 to avoid HTTP/2 protocol errors against the
	// Cohere endpoint.
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereWorker{client: client, model: model, options: options, sink: sink}
}

func (w *CohereWorker) Generate(ctx context.Context, campaign types.Campaign, contentType, identity string) (*types.GenerationResult, error) {
	prompt := w.buildPrompt(campaign, contentType)

	resp, err := w.client.Chat(ctx, &cohere.ChatRequest{
		Message: prompt,
		Model:   &w.model,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere chat: %w", err)
	}

	body := strings.TrimSpace(resp.Text)
	if body == "" {
		return nil, fmt.Errorf("cohere returned empty content for %s/%s", campaign.ID, contentType)
	}
	if w.options.MaxLength > 0 && len(body) > w.options.MaxLength {
		body = body[:w.options.MaxLength]
	}

	contentID := uuid.New().String()
	if w.sink != nil {
		record := content.Record{
			ContentID:      contentID,
			CampaignID:     campaign.ID,
			ContentType:    contentType,
			Identity:       identity,
			Body:           body,
			ApprovalStatus: content.ApprovalPending,
		}
		if err := w.sink.Put(ctx, record); err != nil {
			return nil, fmt.Errorf("persist generated content: %w", err)
		}
	}

	return &types.GenerationResult{ContentID: contentID, MediaRefs: []string{}}, nil
}

func (w *CohereWorker) buildPrompt(campaign types.Campaign, contentType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write one %s for the marketing campaign %q.", contentType, campaign.Title)
	if w.options.Tone != "" {
		fmt.Fprintf(&b, " Tone: %s.", w.options.Tone)
	}
	if w.options.Language != "" {
		fmt.Fprintf(&b, " Language: %s.", w.options.Language)
	}
	if w.options.MaxLength > 0 {
		fmt.Fprintf(&b, " Keep it under %d characters.", w.options.MaxLength)
	}
	if w.options.Hashtags {
		b.WriteString(" Include relevant hashtags.")
	}
	if w.options.CallToAction != "" {
		fmt.Fprintf(&b, " End with this call to action: %s", w.options.CallToAction)
	}
	b.WriteString(" Return only the content itself, no commentary.")
	return b.String()
}
