package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sudodev/sudodev-cli/internal/domain"
)

// Client talks to the sudodev agent server's run API
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the given base URL
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

type runRequestPayload struct {
	InstanceID       string `json:"instance_id"`
	ProblemStatement string `json:"problem_statement"`
}

type runResponsePayload struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type statusResponsePayload struct {
	RunID       string   `json:"run_id"`
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
	Logs        []string `json:"logs,omitempty"`
	CurrentStep int      `json:"current_step,omitempty"`
	Patch       string   `json:"patch,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type errorPayload struct {
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// StartRun submits a run request and returns the handle the server
// assigned. Not idempotent: calling it twice creates two remote runs.
func (c *Client) StartRun(ctx context.Context, req domain.RunRequest) (domain.RunHandle, error) {
	body, err := json.Marshal(runRequestPayload{
		InstanceID:       req.InstanceID,
		ProblemStatement: req.ProblemStatement,
	})
	if err != nil {
		return domain.RunHandle{}, &ProtocolError{Reason: fmt.Sprintf("encoding request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/run", bytes.NewReader(body))
	if err != nil {
		return domain.RunHandle{}, &ProtocolError{Reason: fmt.Sprintf("building request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.RunHandle{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.RunHandle{}, &ProtocolError{Reason: unexpectedStatus(resp)}
	}

	var payload runResponsePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.RunHandle{}, &ProtocolError{Reason: fmt.Sprintf("decoding response: %v", err)}
	}
	if payload.RunID == "" {
		return domain.RunHandle{}, &ProtocolError{Reason: "response missing run_id"}
	}

	return domain.RunHandle{RunID: payload.RunID}, nil
}

// GetStatus fetches the latest status snapshot for a run. A remote
// error field in the payload is a domain-level failure, reported on the
// observation via ErrorIndicator rather than as a returned error.
func (c *Client) GetStatus(ctx context.Context, runID string) (domain.RunObservation, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status/"+runID, nil)
	if err != nil {
		return domain.RunObservation{}, &ProtocolError{Reason: fmt.Sprintf("building request: %v", err)}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.RunObservation{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.RunObservation{}, &ProtocolError{Reason: unexpectedStatus(resp)}
	}

	var payload statusResponsePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.RunObservation{}, &ProtocolError{Reason: fmt.Sprintf("decoding response: %v", err)}
	}

	obs := domain.RunObservation{
		StepIndex: payload.CurrentStep,
		Logs:      payload.Logs,
		Message:   payload.Message,
		Patch:     payload.Patch,
	}

	if payload.Error != "" {
		// The run itself failed inside the agent. Status is unreliable
		// alongside an error field, so don't reject unknown values here.
		obs.ErrorIndicator = true
		obs.ErrorMessage = payload.Error
		obs.Status = domain.StatusFailed
		if status, err := domain.ParseRunStatus(payload.Status); err == nil {
			obs.Status = status
		}
		return obs, nil
	}

	status, err := domain.ParseRunStatus(payload.Status)
	if err != nil {
		return domain.RunObservation{}, &ProtocolError{Reason: err.Error()}
	}
	obs.Status = status

	return obs, nil
}

// unexpectedStatus builds a protocol error reason from a non-2xx
// response, surfacing the server's error/detail text when present.
func unexpectedStatus(resp *http.Response) string {
	reason := fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return reason
	}

	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return reason + ": " + payload.Error
		}
		if payload.Detail != "" {
			return reason + ": " + payload.Detail
		}
	}
	return reason
}
