package statestore

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
)

// RemoteStore exports and imports state through a collaborator's HTTP endpoint:
// GET {url}/state returns the blob and PUT {url}/state replaces it.
type RemoteStore struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewRemoteStore creates a remote collaborator.
func NewRemoteStore(name, baseURL string, timeout time.Duration) *RemoteStore {
	return &RemoteStore{
		name:       name,
		endpoint:   strings.TrimRight(baseURL, "/") + "/state",
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *RemoteStore) Name() string { return s.name }

// ExportState fetches the collaborator's current state.
func (s *RemoteStore) ExportState(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("export %s: http %d: %s", s.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// ImportState pushes state to the collaborator.
func (s *RemoteStore) ImportState(ctx context.Context, state []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint, bytes.NewReader(state))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("import %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("import %s: http %d: %s", s.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// ValidateState requires a JSON document.
func (s *RemoteStore) ValidateState(ctx context.Context, state []byte) error {
	if !json.Valid(state) {
		return errors.New("state is not valid JSON")
	}
	return nil
}
