// Package httpapi exposes the HTTP surface: the Twilio voice webhook, the
// browser and telephony websockets, the demo page and the ops endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ezdanlabs/sara/internal/bridge"
	"github.com/ezdanlabs/sara/internal/config"
	"github.com/ezdanlabs/sara/internal/observability"
	"github.com/ezdanlabs/sara/internal/session"
)

// Bridger runs one bridged call per websocket until either side ends it.
type Bridger interface {
	RunBrowser(ctx context.Context, link bridge.ClientLink) error
	RunTelephony(ctx context.Context, link bridge.ClientLink) error
}

type Server struct {
	cfg      config.Config
	bridge   Bridger
	registry *session.Registry
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	static   http.Handler
}

func New(cfg config.Config, b Bridger, registry *session.Registry, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		bridge:   b,
		registry: registry,
		metrics:  metrics,
		static:   newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers must come from the same origin; non-browser
				// clients (Twilio) omit Origin and are allowed through.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/voice", s.handleVoiceWebhook)
	r.Post("/voice", s.handleVoiceWebhook)
	r.Get("/ws", s.handleBrowserWS)
	r.Get("/media-stream", s.handleMediaStreamWS)
	r.Get("/v1/calls", s.handleListCalls)

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	r.URL.Path = "/"
	s.static.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_calls": s.registry.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleVoiceWebhook answers Twilio's inbound-call webhook with TwiML that
// connects the call's media stream back to this host.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	streamURL := "wss://" + r.Host + "/media-stream"
	body, err := renderConnectTwiML(streamURL)
	if err != nil {
		http.Error(w, "twiml render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleBrowserWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	link := newWSLink(conn)
	defer link.Close()

	if err := s.bridge.RunBrowser(r.Context(), link); err != nil {
		log.Printf("browser call failed: %v", err)
	}
}

func (s *Server) handleMediaStreamWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	link := newWSLink(conn)
	defer link.Close()

	if err := s.bridge.RunTelephony(r.Context(), link); err != nil {
		log.Printf("telephony call failed: %v", err)
	}
}

func (s *Server) handleListCalls(w http.ResponseWriter, _ *http.Request) {
	calls := s.registry.Active()
	respondJSON(w, http.StatusOK, map[string]any{
		"active": len(calls),
		"calls":  calls,
	})
}

// wsLink adapts a gorilla websocket to the bridge's frame interface.
// Writes are serialized; gorilla allows only one concurrent writer.
type wsLink struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSLink(conn *websocket.Conn) *wsLink {
	conn.SetReadLimit(2 << 20)
	return &wsLink{conn: conn}
}

func (l *wsLink) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := l.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

func (l *wsLink) WriteMessage(data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

func (l *wsLink) Close() error {
	var err error
	l.closeOnce.Do(func() { err = l.conn.Close() })
	return err
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
