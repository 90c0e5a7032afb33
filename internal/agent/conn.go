// Package agent wraps the cloud speech-to-speech service as a bidirectional
// command/event connection. It is a consumed collaborator: this package
// speaks the wire protocol and nothing else.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

const apiVersion = "2025-05-01-preview"

// Conn is one live agent session. Implementations must allow concurrent
// writers; Events is closed when the connection ends.
type Conn interface {
	UpdateSession(ctx context.Context, cfg SessionConfig) error
	AppendAudio(ctx context.Context, audioBase64 string) error
	CommitAudio(ctx context.Context) error
	CreateResponse(ctx context.Context) error
	CancelResponse(ctx context.Context) error
	SendFunctionOutput(ctx context.Context, callID, output string) error
	Events() <-chan any
	Close() error
}

// Dialer opens agent connections; one per call.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

type Client struct {
	endpoint string
	apiKey   string
	model    string
}

func NewClient(endpoint, apiKey, model string) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:   apiKey,
		model:    model,
	}
}

func (c *Client) Dial(ctx context.Context) (Conn, error) {
	u, err := url.Parse(c.endpoint + "/voice-live/realtime")
	if err != nil {
		return nil, fmt.Errorf("parse agent endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("api-version", apiVersion)
	q.Set("model", c.model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("api-key", c.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("dial agent websocket: %w", err)
	}

	s := &liveConn{
		conn:   conn,
		events: make(chan any, 256),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type liveConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan any
	done      chan struct{}
}

func (s *liveConn) UpdateSession(_ context.Context, cfg SessionConfig) error {
	return s.writeJSON(map[string]any{
		"type":    "session.update",
		"session": cfg,
	})
}

func (s *liveConn) AppendAudio(_ context.Context, audioBase64 string) error {
	return s.writeJSON(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": audioBase64,
	})
}

func (s *liveConn) CommitAudio(_ context.Context) error {
	return s.writeJSON(map[string]any{"type": "input_audio_buffer.commit"})
}

func (s *liveConn) CreateResponse(_ context.Context) error {
	return s.writeJSON(map[string]any{"type": "response.create"})
}

func (s *liveConn) CancelResponse(_ context.Context) error {
	return s.writeJSON(map[string]any{"type": "response.cancel"})
}

func (s *liveConn) SendFunctionOutput(_ context.Context, callID, output string) error {
	return s.writeJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	})
}

func (s *liveConn) Events() <-chan any { return s.events }

// Close shuts the websocket and unblocks the read loop. The events channel
// is closed by the read loop alone, so a consumer that stopped draining
// mid-buffer can never race Close into a send on a closed channel.
func (s *liveConn) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		close(s.done)
		retErr = s.conn.Close()
	})
	return retErr
}

func (s *liveConn) writeJSON(payload map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(payload)
}

func (s *liveConn) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		evt, err := ParseServerEvent(data)
		if err != nil {
			continue
		}
		select {
		case s.events <- evt:
		case <-s.done:
			return
		}
	}
}
