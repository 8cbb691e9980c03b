package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/liamcoop/decisiontables/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.URL = "postgres://unused"
	return cfg
}

// Helper function to make HTTP requests that must succeed
func makeRequest(t *testing.T, method, url string, body any) map[string]any {
	t.Helper()
	status, result := doRequest(t, method, url, body)
	if status < 200 || status >= 300 {
		t.Fatalf("%s %s failed with status %d: %v", method, url, status, result)
	}
	return result
}

// Helper function returning the status and decoded JSON body
func doRequest(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	resp, err := makeHTTPRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to make %s request to %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	var result map[string]any
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &result); err != nil {
			t.Fatalf("Failed to decode response %q: %v", data, err)
		}
	}

	return resp.StatusCode, result
}

// Helper function to make raw HTTP requests
func makeHTTPRequest(method, url string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = bytes.NewReader([]byte(b))
	default:
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return client.Do(req)
}

func firstResult(t *testing.T, evalResp map[string]any) map[string]any {
	t.Helper()
	results, ok := evalResp["results"].([]any)
	if !ok || len(results) == 0 {
		t.Fatalf("Expected results array, got %v", evalResp)
	}
	return results[0].(map[string]any)
}
