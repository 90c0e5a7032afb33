package agent

// SessionConfig is the immutable per-call agent session configuration,
// pushed once right after the connection is established.
type SessionConfig struct {
	Modalities        []string      `json:"modalities"`
	Voice             Voice         `json:"voice"`
	Instructions      string        `json:"instructions"`
	Tools             []Tool        `json:"tools,omitempty"`
	InputAudioFormat  string        `json:"input_audio_format"`
	OutputAudioFormat string        `json:"output_audio_format"`
	TurnDetection     TurnDetection `json:"turn_detection"`
}

type Voice struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Rate string `json:"rate,omitempty"`
}

// TurnDetection holds the server-side VAD parameters. Telephony calls use a
// much less sensitive policy than browser calls to tolerate line noise.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

// Tool is one function definition in the session's tool catalog.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
