package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"campaignbot/state"
	"campaignbot/types"
)

// StatusResponse is the JSON response from the orchestrator control
// API: the live run state plus the durable checkpoint snapshot.
type StatusResponse struct {
	Run        state.Status     `json:"run"`
	Checkpoint types.Checkpoint `json:"checkpoint"`
}

// OrchestratorClient is a thin HTTP client for the orchestrator
// control API.
type OrchestratorClient struct {
	baseURL string
	client  *http.Client
}

// NewOrchestratorClient creates a new orchestrator client
func NewOrchestratorClient(baseURL string) *OrchestratorClient {
	return &OrchestratorClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetStatus fetches the current status from the orchestrator
func (c *OrchestratorClient) GetStatus() (*StatusResponse, error) {
	resp, err := c.client.Get(c.baseURL + "/api/status")
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &status, nil
}

// Halt raises the orchestrator halt flag: in-flight units finish, no
// new batch starts.
func (c *OrchestratorClient) Halt() error {
	resp, err := c.client.Post(c.baseURL+"/api/halt", "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to halt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// ClearState resets the orchestrator checkpoint to its default empty
// state.
func (c *OrchestratorClient) ClearState() error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/api/state", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
