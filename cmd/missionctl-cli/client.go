package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient() *apiClient {
	baseURL := serverURL
	if baseURL == "" {
		baseURL = os.Getenv("MISSIONCTL_URL")
	}
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}

	return &apiClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) post(method, path string, body any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable at %s (%w)", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("unexpected response: %s", raw)
		}
	}

	if resp.StatusCode >= 400 {
		if msg, ok := parsed["error"].(string); ok {
			return nil, fmt.Errorf("request failed: %s", msg)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return parsed, nil
}
