package bridge

import (
	"context"
	"errors"
	"log"

	"github.com/ezdanlabs/sara/internal/agent"
	"github.com/ezdanlabs/sara/internal/protocol"
	"github.com/ezdanlabs/sara/internal/session"
)

// RunBrowser bridges one browser websocket. Browser audio is already
// PCM16 at the agent's rate, so both directions pass through untouched.
func (b *Bridge) RunBrowser(ctx context.Context, link ClientLink) error {
	return b.run(ctx, session.TransportBrowser, link, b.browserClientLoop, b.browserAgentLoop)
}

func (b *Bridge) browserClientLoop(ctx context.Context, c *call) error {
	for {
		raw, err := c.link.ReadMessage()
		if err != nil {
			// Client hangup is the normal end of a browser call.
			return nil
		}

		msg, err := protocol.ParseBrowserMessage(raw)
		if err != nil {
			if !errors.Is(err, protocol.ErrUnsupportedType) {
				log.Printf("call %s: bad browser frame: %v", c.rec.ID, err)
			}
			continue
		}

		switch m := msg.(type) {
		case protocol.BrowserStartMessage:
			c.state.markReady()
		case protocol.BrowserAudioMessage:
			if m.AudioBase64 == "" {
				continue
			}
			b.countFrame("in", session.TransportBrowser)
			if err := c.agent.AppendAudio(ctx, m.AudioBase64); err != nil {
				return err
			}
		case protocol.BrowserCommitMessage:
			if err := c.agent.CommitAudio(ctx); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) browserAgentLoop(ctx context.Context, c *call) error {
	for {
		var ev any
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case ev, ok = <-c.agent.Events():
			if !ok {
				return nil
			}
		}

		switch e := ev.(type) {
		case agent.AudioDelta:
			b.countAgentEvent("audio_delta")
			b.countFrame("out", session.TransportBrowser)
			frame, err := protocol.MarshalBrowserAudio(e.Delta)
			if err != nil {
				continue
			}
			if err := c.link.WriteMessage(frame); err != nil {
				return nil
			}
		case agent.SpeechStarted:
			b.countAgentEvent("speech_started")
			clearFrame, err := protocol.MarshalBrowserClear()
			if err != nil {
				continue
			}
			c.bargeIn(ctx, clearFrame)
		case agent.SpeechStopped:
			b.countAgentEvent("speech_stopped")
			log.Printf("call %s: caller stopped speaking", c.rec.ID)
		case agent.TranscriptionCompleted:
			b.countAgentEvent("transcription")
			log.Printf("call %s: caller said: %s", c.rec.ID, e.Transcript)
		case agent.TextDone:
			b.countAgentEvent("text_done")
			log.Printf("call %s: agent said: %s", c.rec.ID, e.Text)
		case agent.FunctionCallArgumentsDone:
			b.countAgentEvent("function_call")
			c.dispatchTool(ctx, e)
		case agent.ErrorEvent:
			b.countAgentEvent("error")
			log.Printf("call %s: agent error %s: %s", c.rec.ID, e.Code, e.Message)
		}
	}
}
