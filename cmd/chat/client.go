package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// reply is one answer from the server.
type reply struct {
	Text   string `json:"response"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

// Ask posts message to /chat.
func (c *client) Ask(ctx context.Context, message string) (reply, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return reply{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return reply{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()

	var r reply
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return reply{}, fmt.Errorf("chat: decode %s response: %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK {
		return reply{}, fmt.Errorf("chat: %s: %s", resp.Status, r.Error)
	}
	return r, nil
}

// Health reports whether the server has its index loaded.
func (c *client) Health(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()
	var h struct {
		ModelLoaded bool `json:"model_loaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return false, fmt.Errorf("health: decode: %w", err)
	}
	return h.ModelLoaded, nil
}
