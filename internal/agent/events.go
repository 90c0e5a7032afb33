package agent

import (
	"encoding/json"
	"fmt"
)

// Server event type strings as the realtime endpoint emits them.
const (
	typeSpeechStarted          = "input_audio_buffer.speech_started"
	typeSpeechStopped          = "input_audio_buffer.speech_stopped"
	typeAudioDelta             = "response.audio.delta"
	typeTextDone               = "response.text.done"
	typeTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	typeFunctionCallArgsDone   = "response.function_call_arguments.done"
	typeServerError            = "error"
)

// The inbound stream is modelled as a closed set of variants; anything the
// gateway does not act on parses to Unknown and falls through to a no-op.

type SpeechStarted struct{}

type SpeechStopped struct{}

type AudioDelta struct {
	// Delta is base64 PCM16LE at the agent's output rate.
	Delta string
}

type TextDone struct {
	Text string
}

type TranscriptionCompleted struct {
	Transcript string
}

type FunctionCallArgumentsDone struct {
	CallID    string
	Name      string
	Arguments string
}

type ErrorEvent struct {
	Code    string
	Message string
}

type Unknown struct {
	EventType string
}

type rawServerEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
	CallID     string `json:"call_id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	Error      struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseServerEvent decodes one agent event frame into its typed variant.
func ParseServerEvent(data []byte) (any, error) {
	var raw rawServerEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid server event: %w", err)
	}

	switch raw.Type {
	case typeSpeechStarted:
		return SpeechStarted{}, nil
	case typeSpeechStopped:
		return SpeechStopped{}, nil
	case typeAudioDelta:
		return AudioDelta{Delta: raw.Delta}, nil
	case typeTextDone:
		return TextDone{Text: raw.Text}, nil
	case typeTranscriptionCompleted:
		return TranscriptionCompleted{Transcript: raw.Transcript}, nil
	case typeFunctionCallArgsDone:
		args := raw.Arguments
		if args == "" {
			args = "{}"
		}
		return FunctionCallArgumentsDone{CallID: raw.CallID, Name: raw.Name, Arguments: args}, nil
	case typeServerError:
		return ErrorEvent{Code: raw.Error.Code, Message: raw.Error.Message}, nil
	default:
		return Unknown{EventType: raw.Type}, nil
	}
}
