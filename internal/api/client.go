package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	streamPath      = "/api/chat/stream"
	chatPath        = "/api/chat"
	preferencesPath = "/api/chat/conversations/%s/preferences"

	// dataPrefix marks the stream records we interpret; every other line
	// (comments, blank keep-alives) is ignored.
	dataPrefix = "data: "
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code   int
	Status string // full status line, e.g. "503 Service Unavailable"
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("news api: %s", e.Status)
}

// Client talks to the Latest News Agent API.
type Client struct {
	baseURL string
	// httpClient has no client-level timeout: a streaming response stays
	// open for the whole assistant turn. Deadlines come from the request
	// context instead.
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL (scheme://host[:port]).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Stream POSTs to the streaming chat endpoint and decodes the chunked
// response incrementally. The returned Stream yields events in arrival
// order; closing it aborts the request.
func (c *Client) Stream(ctx context.Context, req ChatRequest) (Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	return newEventStream(ctx, func(ctx context.Context, events chan<- StreamEvent) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build stream request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("stream request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return readStatusError(resp)
		}

		scanner := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, dataPrefix) {
				continue
			}
			payload := strings.TrimPrefix(line, dataPrefix)

			var event StreamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				// A record cut at a flush boundary arrives as invalid
				// JSON. Skip the record, keep the stream alive.
				log.Debug().Err(err).Str("record", payload).Msg("skipping malformed stream record")
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return ctx.Err()
			}
			if event.Terminal() {
				return nil
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		return nil
	}), nil
}

// Send POSTs to the non-streaming chat endpoint and returns the complete
// reply. Same request contract as Stream.
func (c *Client) Send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readStatusError(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &chatResp, nil
}

// Preferences fetches the backend's view of a conversation's preferences.
func (c *Client) Preferences(ctx context.Context, conversationID string) (*PreferencesStatus, error) {
	path := fmt.Sprintf(preferencesPath, url.PathEscape(conversationID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build preferences request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("preferences request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readStatusError(resp)
	}

	var status PreferencesStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode preferences response: %w", err)
	}
	return &status, nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(body)),
	}
}
