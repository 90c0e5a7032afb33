// Package bridge pumps audio between a connected client (browser or
// telephony media stream) and one agent session, handling greeting,
// barge-in, transcoding and tool-call dispatch for the life of the call.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ezdanlabs/sara/internal/agent"
	"github.com/ezdanlabs/sara/internal/calendar"
	"github.com/ezdanlabs/sara/internal/observability"
	"github.com/ezdanlabs/sara/internal/prompt"
	"github.com/ezdanlabs/sara/internal/session"
	"github.com/ezdanlabs/sara/internal/tools"
)

const (
	voiceName = "en-US-AvaMultilingualNeural"
	voiceType = "azure-standard"
)

// ClientLink is the client side of a call: one websocket, read and written
// as whole frames. Only the bridge writes to it once a call is running.
// Close must be safe to call more than once.
type ClientLink interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Options tune per-call timing. Zero values take the production defaults.
type Options struct {
	// AudioGate drops inbound telephony audio for this long after the
	// stream starts, so line setup noise never reaches the agent.
	AudioGate time.Duration
	// GreetingDelay separates stream readiness from the greeting request.
	GreetingDelay time.Duration
	// ToolJoinTimeout bounds how long teardown waits for running tool calls.
	ToolJoinTimeout time.Duration
}

func (o *Options) fillDefaults() {
	if o.AudioGate <= 0 {
		o.AudioGate = 1200 * time.Millisecond
	}
	if o.GreetingDelay <= 0 {
		o.GreetingDelay = 50 * time.Millisecond
	}
	if o.ToolJoinTimeout <= 0 {
		o.ToolJoinTimeout = 5 * time.Second
	}
}

// Bridge owns the shared collaborators; one Bridge serves all calls.
type Bridge struct {
	dialer     agent.Dialer
	dispatcher *tools.Dispatcher
	prompts    *prompt.Builder
	clock      *calendar.Clock
	registry   *session.Registry
	metrics    *observability.Metrics
	opts       Options
	now        func() time.Time
}

func New(dialer agent.Dialer, dispatcher *tools.Dispatcher, prompts *prompt.Builder, clock *calendar.Clock, registry *session.Registry, metrics *observability.Metrics, opts Options) *Bridge {
	opts.fillDefaults()
	return &Bridge{
		dialer:     dialer,
		dispatcher: dispatcher,
		prompts:    prompts,
		clock:      clock,
		registry:   registry,
		metrics:    metrics,
		opts:       opts,
		now:        time.Now,
	}
}

// sessionConfig builds the per-transport agent session. Telephony uses a
// far less sensitive turn-detection policy and a slower voice rate to cope
// with line noise and narrowband audio.
func (b *Bridge) sessionConfig(transport session.Transport) agent.SessionConfig {
	cfg := agent.SessionConfig{
		Modalities:        []string{"text", "audio"},
		Instructions:      b.prompts.Build(b.clock.Today()),
		Tools:             tools.Catalog(),
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
	}
	switch transport {
	case session.TransportTelephony:
		cfg.Voice = agent.Voice{Name: voiceName, Type: voiceType, Rate: "0.9"}
		cfg.TurnDetection = agent.TurnDetection{
			Type:              "server_vad",
			Threshold:         0.9,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 1000,
		}
	default:
		cfg.Voice = agent.Voice{Name: voiceName, Type: voiceType, Rate: "0.98"}
		cfg.TurnDetection = agent.TurnDetection{
			Type:              "server_vad",
			Threshold:         0.6,
			SilenceDurationMS: 400,
		}
	}
	return cfg
}

// callState is the mutable per-call state shared between the loops.
type callState struct {
	mu          sync.Mutex
	streamSID   string
	streamStart time.Time
	greeted     bool

	ready     chan struct{}
	readyOnce sync.Once
}

func newCallState() *callState {
	return &callState{ready: make(chan struct{})}
}

// markReady signals that the client stream is established. Safe to call
// more than once; only the first signal counts.
func (s *callState) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *callState) setStream(sid string, at time.Time) {
	s.mu.Lock()
	s.streamSID = sid
	s.streamStart = at
	s.mu.Unlock()
}

func (s *callState) stream() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID, s.streamStart
}

type call struct {
	b     *Bridge
	rec   *session.Call
	link  ClientLink
	agent agent.Conn
	state *callState
	tasks sync.WaitGroup
}

// run wires one call end to end: dials the agent, pushes the session
// configuration and drives the three activities until either side ends.
func (b *Bridge) run(ctx context.Context, transport session.Transport,
	link ClientLink,
	clientLoop func(ctx context.Context, c *call) error,
	agentLoop func(ctx context.Context, c *call) error) error {

	rec := b.registry.Register(transport)
	defer b.registry.Release(rec.ID)
	b.gaugeCalls(1)
	defer b.gaugeCalls(-1)
	b.countCall(transport, "started")
	log.Printf("call %s: %s client connected", rec.ID, transport)

	conn, err := b.dialer.Dial(ctx)
	if err != nil {
		b.countCall(transport, "agent_dial_failed")
		return fmt.Errorf("dial agent: %w", err)
	}

	c := &call{b: b, rec: rec, link: link, agent: conn, state: newCallState()}

	if err := conn.UpdateSession(ctx, b.sessionConfig(transport)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("configure agent session: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// The client read loop blocks in ReadMessage; closing both ends on
	// cancellation is what unblocks it. Close must be idempotent.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
		_ = link.Close()
	}()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return clientLoop(gctx, c)
	})
	g.Go(func() error {
		defer cancel()
		return agentLoop(gctx, c)
	})
	g.Go(func() error {
		return c.greet(gctx)
	})
	runErr := g.Wait()

	// Both sides come down regardless of which one ended the call.
	_ = conn.Close()
	_ = link.Close()
	c.waitTasks(b.opts.ToolJoinTimeout)

	b.countCall(transport, "ended")
	log.Printf("call %s: ended", rec.ID)
	if runErr != nil && !isContextErr(runErr) {
		return runErr
	}
	return nil
}

// greet asks the agent for its opening turn once the client stream is
// ready. It runs once per call whatever the transport sends.
func (c *call) greet(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-c.state.ready:
	}

	timer := time.NewTimer(c.b.opts.GreetingDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}

	c.state.mu.Lock()
	already := c.state.greeted
	c.state.greeted = true
	c.state.mu.Unlock()
	if already {
		return nil
	}

	if err := c.agent.CreateResponse(ctx); err != nil {
		return fmt.Errorf("request greeting: %w", err)
	}
	log.Printf("call %s: greeting requested", c.rec.ID)
	return nil
}

// bargeIn flushes queued client playback, then cancels the in-flight
// agent response. The clear must reach the client first or it keeps
// playing stale audio while the agent already listens.
func (c *call) bargeIn(ctx context.Context, clearFrame []byte) {
	if err := c.link.WriteMessage(clearFrame); err != nil {
		log.Printf("call %s: clear playback: %v", c.rec.ID, err)
	}
	if err := c.agent.CancelResponse(ctx); err != nil {
		log.Printf("call %s: cancel response: %v", c.rec.ID, err)
	}
	c.b.countCall(c.rec.Transport, "barge_in")
}

// dispatchTool runs one tool call in its own goroutine, detached from the
// call context so a hangup mid-search cannot orphan a half-delivered
// function output.
func (c *call) dispatchTool(ctx context.Context, ev agent.FunctionCallArgumentsDone) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		c.b.dispatcher.HandleCall(context.WithoutCancel(ctx), c.agent, ev.CallID, ev.Name, ev.Arguments)
	}()
}

func (c *call) waitTasks(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("call %s: tool tasks still running at teardown", c.rec.ID)
	}
}

func (b *Bridge) gaugeCalls(delta float64) {
	if b.metrics == nil {
		return
	}
	b.metrics.ActiveCalls.Add(delta)
}

func (b *Bridge) countCall(transport session.Transport, event string) {
	if b.metrics == nil {
		return
	}
	b.metrics.CallEvents.WithLabelValues(string(transport), event).Inc()
}

func (b *Bridge) countAgentEvent(eventType string) {
	if b.metrics == nil {
		return
	}
	b.metrics.AgentEvents.WithLabelValues(eventType).Inc()
}

func (b *Bridge) countFrame(direction string, transport session.Transport) {
	if b.metrics == nil {
		return
	}
	b.metrics.AudioFrames.WithLabelValues(direction, string(transport)).Inc()
}

func (b *Bridge) countTranscodeError() {
	if b.metrics == nil {
		return
	}
	b.metrics.TranscodeErrors.Inc()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
