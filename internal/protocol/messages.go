package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// BrowserMessageType identifies browser websocket payload variants.
type BrowserMessageType string

const (
	BrowserStart      BrowserMessageType = "start"
	BrowserAudio      BrowserMessageType = "audio"
	BrowserCommit     BrowserMessageType = "commit"
	BrowserClearAudio BrowserMessageType = "clear_audio"
)

// TwilioEventType identifies Twilio media-stream envelope variants.
type TwilioEventType string

const (
	TwilioStart TwilioEventType = "start"
	TwilioMedia TwilioEventType = "media"
	TwilioStop  TwilioEventType = "stop"
	TwilioClear TwilioEventType = "clear"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type browserEnvelope struct {
	Type BrowserMessageType `json:"type"`
}

// BrowserStartMessage opens a browser conversation; audio before it is dropped.
type BrowserStartMessage struct {
	Type BrowserMessageType `json:"type"`
}

// BrowserAudioMessage carries one base64 PCM16 chunk in either direction.
// An empty payload is valid on the wire; receivers skip it.
type BrowserAudioMessage struct {
	Type        BrowserMessageType `json:"type"`
	AudioBase64 string             `json:"payload"`
}

// BrowserCommitMessage asks the agent to treat buffered audio as a finished turn.
type BrowserCommitMessage struct {
	Type BrowserMessageType `json:"type"`
}

// BrowserClearMessage tells the browser to flush queued playback on barge-in.
type BrowserClearMessage struct {
	Type BrowserMessageType `json:"type"`
}

// ParseBrowserMessage decodes one inbound browser frame. Frames the bridge
// does not understand return ErrUnsupportedType so the caller can skip them.
func ParseBrowserMessage(raw []byte) (any, error) {
	var env browserEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case BrowserStart:
		return BrowserStartMessage{Type: env.Type}, nil
	case BrowserAudio:
		var msg BrowserAudioMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case BrowserCommit:
		return BrowserCommitMessage{Type: env.Type}, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// MarshalBrowserAudio renders an outbound audio frame for the browser.
func MarshalBrowserAudio(audioBase64 string) ([]byte, error) {
	return json.Marshal(BrowserAudioMessage{Type: BrowserAudio, AudioBase64: audioBase64})
}

// MarshalBrowserClear renders the playback-flush signal for the browser.
func MarshalBrowserClear() ([]byte, error) {
	return json.Marshal(BrowserClearMessage{Type: BrowserClearAudio})
}

type twilioEnvelope struct {
	Event TwilioEventType `json:"event"`
}

// TwilioStartMessage announces a new media stream and carries its identifier.
type TwilioStartMessage struct {
	Event TwilioEventType `json:"event"`
	Start TwilioStartMeta `json:"start"`
}

type TwilioStartMeta struct {
	StreamSID string `json:"streamSid"`
}

// TwilioMediaMessage carries one base64 mu-law chunk in either direction.
// StreamSID is set only on outbound frames.
type TwilioMediaMessage struct {
	Event     TwilioEventType  `json:"event"`
	StreamSID string           `json:"streamSid,omitempty"`
	Media     TwilioMediaChunk `json:"media"`
}

type TwilioMediaChunk struct {
	Payload string `json:"payload"`
}

// TwilioStopMessage ends the media stream.
type TwilioStopMessage struct {
	Event TwilioEventType `json:"event"`
}

// TwilioClearMessage tells Twilio to flush queued playback on barge-in.
type TwilioClearMessage struct {
	Event     TwilioEventType `json:"event"`
	StreamSID string          `json:"streamSid"`
}

// ParseTwilioMessage decodes one inbound Twilio frame. Unrecognized events
// return ErrUnsupportedType; Twilio sends several the bridge ignores.
func ParseTwilioMessage(raw []byte) (any, error) {
	var env twilioEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Event {
	case TwilioStart:
		var msg TwilioStartMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Start.StreamSID == "" {
			return nil, errors.New("invalid start message: missing streamSid")
		}
		return msg, nil
	case TwilioMedia:
		var msg TwilioMediaMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Media.Payload == "" {
			return nil, errors.New("invalid media message: empty payload")
		}
		return msg, nil
	case TwilioStop:
		return TwilioStopMessage{Event: env.Event}, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// MarshalTwilioMedia renders an outbound media frame tagged with the stream id.
func MarshalTwilioMedia(streamSID, payloadBase64 string) ([]byte, error) {
	return json.Marshal(TwilioMediaMessage{
		Event:     TwilioMedia,
		StreamSID: streamSID,
		Media:     TwilioMediaChunk{Payload: payloadBase64},
	})
}

// MarshalTwilioClear renders the playback-flush signal tagged with the stream id.
func MarshalTwilioClear(streamSID string) ([]byte, error) {
	return json.Marshal(TwilioClearMessage{Event: TwilioClear, StreamSID: streamSID})
}
