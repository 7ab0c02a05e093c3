package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"campaignbot/content"
)

// ApprovalClient is the one write boundary verification touches:
// request_approval(content_id, identity) -> accepted|rejected.
type ApprovalClient interface {
	RequestApproval(ctx context.Context, contentID, identity string) (bool, error)
}

// HTTPApprovalClient calls the external approval service.
type HTTPApprovalClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPApprovalClient(baseURL string) *HTTPApprovalClient {
	return &HTTPApprovalClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPApprovalClient) RequestApproval(ctx context.Context, contentID, identity string) (bool, error) {
	payload := map[string]string{
		"content_id": contentID,
		"identity":   identity,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal approval request: %w", err)
	}

	url := fmt.Sprintf("%s/approvals", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return false, fmt.Errorf("create approval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("approval service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("approval service returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode approval response: %w", err)
	}
	return out.Status == "accepted", nil
}

// AutoApprover accepts every request and records the status in the
// content store itself. It stands in for the approval service in
// standalone deployments that generate text directly.
type AutoApprover struct {
	Store content.Store
}

func (a *AutoApprover) RequestApproval(ctx context.Context, contentID, identity string) (bool, error) {
	if err := a.Store.SetApproval(ctx, contentID, content.ApprovalAccepted); err != nil {
		return false, err
	}
	return true, nil
}
