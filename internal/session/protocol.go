// ABOUTME: JSON message shapes exchanged with connected clients
// ABOUTME: Inbound commands and outbound set_session/add_tune/add_token frames

package session

import (
	"encoding/json"
	"time"
)

// Inbound command names.
const (
	cmdRegisterForTune = "register_for_tune"
	cmdCompose         = "compose"
)

// clientCommand is the envelope of every inbound client message.
type clientCommand struct {
	Command string          `json:"command"`
	TuneID  int64           `json:"tune_id"`
	Data    json.RawMessage `json:"data"`
}

// setSessionMsg is sent once, immediately after the connection opens.
type setSessionMsg struct {
	Command   string `json:"command"`
	SessionID string `json:"session_id"`
}

// tuneInfo is the client-facing view of a freshly created tune record.
type tuneInfo struct {
	ID          int64     `json:"id"`
	Model       string    `json:"rnn_model_name"`
	Temp        float64   `json:"temp"`
	Seed        int       `json:"seed"`
	PrimeTokens string    `json:"prime_tokens"`
	Requested   time.Time `json:"requested"`
}

// addTuneMsg acknowledges a valid compose with the new identifier.
type addTuneMsg struct {
	Command string   `json:"command"`
	Tune    tuneInfo `json:"tune"`
}

// addTokenMsg carries one incremental delta of generated output.
type addTokenMsg struct {
	Command string `json:"command"`
	Token   string `json:"token"`
	TuneID  int64  `json:"tune_id"`
}
