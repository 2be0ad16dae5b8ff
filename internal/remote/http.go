package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/shiftguard/internal/model"
)

// Default record location shared by every client.
const (
	DefaultTable = "sync"
	DefaultKey   = "global-state"
)

// HTTPStore talks to a PostgREST-style REST endpoint holding one row per
// document: {"id": key, "payload": document}.
type HTTPStore struct {
	BaseURL string
	APIKey  string
	Table   string
	Key     string
	HTTP    *http.Client
}

// NewHTTPStore creates a client with a request timeout.
func NewHTTPStore(baseURL, apiKey, table, key string, timeout time.Duration) *HTTPStore {
	if table == "" {
		table = DefaultTable
	}
	if key == "" {
		key = DefaultKey
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Table:   table,
		Key:     key,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type row struct {
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

func (s *HTTPStore) tableURL() string {
	return s.BaseURL + "/rest/v1/" + url.PathEscape(s.Table)
}

func (s *HTTPStore) recordURL() string {
	return s.tableURL() + "?id=eq." + url.QueryEscape(s.Key)
}

func (s *HTTPStore) newRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.APIKey)
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Fetch reads the record. An empty result array means the record does not
// exist yet.
func (s *HTTPStore) Fetch(ctx context.Context) (model.Document, bool, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.recordURL(), nil)
	if err != nil {
		return model.Document{}, false, err
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return model.Document{}, false, fmt.Errorf("remote fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return model.Document{}, false, fmt.Errorf("remote fetch error %s: %s", resp.Status, string(bodyBytes))
	}

	var rows []row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return model.Document{}, false, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(rows) == 0 || isNull(rows[0].Payload) {
		return model.Document{}, false, nil
	}

	doc, err := model.DecodeDocument(rows[0].Payload)
	if err != nil {
		return model.Document{}, false, err
	}
	return doc, true, nil
}

// Update patches the payload of the existing record. A 404 or an empty
// representation means no record matched.
func (s *HTTPStore) Update(ctx context.Context, doc model.Document) (bool, error) {
	payload, err := model.EncodeDocument(doc)
	if err != nil {
		return false, err
	}
	req, err := s.newRequest(ctx, http.MethodPatch, s.recordURL(), row{Payload: payload})
	if err != nil {
		return false, err
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("remote update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("remote update error %s: %s", resp.Status, string(bodyBytes))
	}

	var rows []row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return len(rows) > 0, nil
}

// Create inserts the record under the fixed key.
func (s *HTTPStore) Create(ctx context.Context, doc model.Document) error {
	payload, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	req, err := s.newRequest(ctx, http.MethodPost, s.tableURL(), row{ID: s.Key, Payload: payload})
	if err != nil {
		return err
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("remote create failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remote create error %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
