// Package rest calls submit_registration on a hosted backend through its
// PostgREST-style RPC endpoint:
//
//	POST {url}/rest/v1/rpc/submit_registration
//	apikey: <anon key>
//	Authorization: Bearer <anon key>
//
// The body is a JSON object of the named parameters; the response body is
// the function's JSON result. Credentials come from the environment (see
// config.Rest), never from source.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aanand-mishra/registration-api/internal/storage"
)

// Client implements storage.Caller over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New returns a Client for the project at baseURL.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiError is the error body PostgREST returns with a non-2xx status.
type apiError struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Code    string `json:"code"`
}

// CallSubmitRegistration posts params and decodes the function result.
func (c *Client) CallSubmitRegistration(ctx context.Context, params []storage.Param) (storage.Reply, error) {
	if c.apiKey == "" {
		return storage.Reply{}, errors.New("rest: API key not configured")
	}

	body, err := json.Marshal(storage.ParamMap(params))
	if err != nil {
		return storage.Reply{}, fmt.Errorf("rest: marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rest/v1/rpc/"+storage.ProcedureName, bytes.NewReader(body))
	if err != nil {
		return storage.Reply{}, fmt.Errorf("rest: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return storage.Reply{}, fmt.Errorf("rest: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.Reply{}, fmt.Errorf("rest: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return storage.Reply{}, fmt.Errorf("rest: %s (status %d, code %s)", apiErr.Message, resp.StatusCode, apiErr.Code)
		}
		return storage.Reply{}, fmt.Errorf("rest: request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var reply storage.Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return storage.Reply{}, fmt.Errorf("rest: decode reply: %w", err)
	}
	return reply, nil
}
