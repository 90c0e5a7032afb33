package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"log"

	"github.com/ezdanlabs/sara/internal/agent"
	"github.com/ezdanlabs/sara/internal/audio"
	"github.com/ezdanlabs/sara/internal/protocol"
	"github.com/ezdanlabs/sara/internal/session"
)

// RunTelephony bridges one Twilio media stream. Inbound mu-law at 8 kHz is
// transcoded up to the agent's PCM16 rate; agent audio comes back down the
// same way, tagged with the stream id Twilio assigned.
func (b *Bridge) RunTelephony(ctx context.Context, link ClientLink) error {
	return b.run(ctx, session.TransportTelephony, link, b.telephonyClientLoop, b.telephonyAgentLoop)
}

func (b *Bridge) telephonyClientLoop(ctx context.Context, c *call) error {
	for {
		raw, err := c.link.ReadMessage()
		if err != nil {
			return nil
		}

		msg, err := protocol.ParseTwilioMessage(raw)
		if err != nil {
			if !errors.Is(err, protocol.ErrUnsupportedType) {
				log.Printf("call %s: bad media frame: %v", c.rec.ID, err)
			}
			continue
		}

		switch m := msg.(type) {
		case protocol.TwilioStartMessage:
			c.state.setStream(m.Start.StreamSID, b.now())
			_ = b.registry.SetStreamSID(c.rec.ID, m.Start.StreamSID)
			c.state.markReady()
			log.Printf("call %s: media stream %s started", c.rec.ID, m.Start.StreamSID)
		case protocol.TwilioMediaMessage:
			if err := b.forwardCallerAudio(ctx, c, m.Media.Payload); err != nil {
				return err
			}
		case protocol.TwilioStopMessage:
			log.Printf("call %s: media stream stopped", c.rec.ID)
			return nil
		}
	}
}

// forwardCallerAudio gates, transcodes and pushes one caller chunk. Frames
// inside the gate window and frames that fail to decode are dropped; a
// broken chunk must not take the call down.
func (b *Bridge) forwardCallerAudio(ctx context.Context, c *call, payload string) error {
	_, startedAt := c.state.stream()
	if startedAt.IsZero() || b.now().Sub(startedAt) < b.opts.AudioGate {
		b.countCall(session.TransportTelephony, "audio_gated")
		return nil
	}

	mulaw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		b.countTranscodeError()
		return nil
	}
	pcm, err := audio.DownlinkToAgent(mulaw)
	if err != nil {
		b.countTranscodeError()
		return nil
	}

	b.countFrame("in", session.TransportTelephony)
	return c.agent.AppendAudio(ctx, base64.StdEncoding.EncodeToString(pcm))
}

func (b *Bridge) telephonyAgentLoop(ctx context.Context, c *call) error {
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
			if err := b.forwardAgentAudio(c, e.Delta); err != nil {
				return nil
			}
		case agent.SpeechStarted:
			b.countAgentEvent("speech_started")
			sid, _ := c.state.stream()
			if sid == "" {
				continue
			}
			clearFrame, err := protocol.MarshalTwilioClear(sid)
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

// forwardAgentAudio transcodes one agent chunk down to mu-law and sends it
// to Twilio. Chunks arriving before the stream id is known are dropped.
func (b *Bridge) forwardAgentAudio(c *call, delta string) error {
	sid, _ := c.state.stream()
	if sid == "" {
		return nil
	}

	pcm, err := base64.StdEncoding.DecodeString(delta)
	if err != nil {
		b.countTranscodeError()
		return nil
	}
	mulaw, err := audio.UplinkFromAgent(pcm)
	if err != nil {
		b.countTranscodeError()
		return nil
	}

	frame, err := protocol.MarshalTwilioMedia(sid, base64.StdEncoding.EncodeToString(mulaw))
	if err != nil {
		return nil
	}
	b.countFrame("out", session.TransportTelephony)
	return c.link.WriteMessage(frame)
}
