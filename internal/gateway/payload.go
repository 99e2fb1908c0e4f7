package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const maxPayloadSize = 10 * 1024 * 1024

// Gateway opcodes.
const (
	OpDispatch            = 0
	OpHeartbeat           = 1
	OpIdentify            = 2
	OpPresenceUpdate      = 3
	OpVoiceStateUpdate    = 4
	OpResume              = 6
	OpReconnect           = 7
	OpRequestGuildMembers = 8
	OpInvalidSession      = 9
	OpHello               = 10
	OpHeartbeatACK        = 11
)

// Close codes the gateway sends when it drops a connection. Codes marked
// fatal must not be retried.
const (
	CloseUnknownError         = 4000
	CloseUnknownOpcode        = 4001
	CloseDecodeError          = 4002
	CloseNotAuthenticated     = 4003
	CloseAuthenticationFailed = 4004
	CloseAlreadyAuthenticated = 4005
	CloseInvalidSeq           = 4007
	CloseRateLimited          = 4008
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
	CloseInvalidAPIVersion    = 4012
	CloseInvalidIntents       = 4013
	CloseDisallowedIntents    = 4014
)

// FatalCloseCode reports whether a close code means the credentials or
// configuration are wrong and reconnecting cannot help.
func FatalCloseCode(code int) bool {
	switch code {
	case CloseAuthenticationFailed,
		CloseInvalidShard,
		CloseShardingRequired,
		CloseInvalidAPIVersion,
		CloseInvalidIntents,
		CloseDisallowedIntents:
		return true
	}
	return false
}

// ResumableCloseCode reports whether the session may be resumed after the
// given close code. Non-resumable recoverable codes require a fresh
// identify.
func ResumableCloseCode(code int) bool {
	switch code {
	case CloseInvalidSeq, CloseSessionTimedOut:
		return false
	}
	return !FatalCloseCode(code)
}

// Payload is one gateway frame. Seq and Title are set only on dispatch
// frames.
type Payload struct {
	Op    int             `json:"op"`
	Data  json.RawMessage `json:"d,omitempty"`
	Seq   int64           `json:"s,omitempty"`
	Title string          `json:"t,omitempty"`
}

// Hello is the opcode 10 body.
type Hello struct {
	// HeartbeatInterval is in milliseconds.
	HeartbeatInterval float64 `json:"heartbeat_interval"`
}

// IdentifyProperties describes the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Identify is the opcode 2 body.
type Identify struct {
	Token          string             `json:"token"`
	Properties     IdentifyProperties `json:"properties"`
	Intents        uint64             `json:"intents"`
	Compress       bool               `json:"compress"`
	Shard          [2]int             `json:"shard"`
	LargeThreshold int                `json:"large_threshold,omitempty"`
}

// Resume is the opcode 6 body.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// Ready carries the session-level fields of the READY dispatch. The event
// body holds more; the connection layer only needs these.
type Ready struct {
	Version          int    `json:"v"`
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
}

// Encode marshals a frame with the given opcode and body.
func Encode(op int, d any) ([]byte, error) {
	p := Payload{Op: op}
	if d != nil {
		data, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("gateway: encoding op %d body: %w", op, err)
		}
		p.Data = data
	}
	out, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("gateway: encoding op %d frame: %w", op, err)
	}
	return out, nil
}

// Decode parses one frame. Compressed frames are whole-payload zlib and
// arrive as binary websocket messages; the rest are plain JSON text.
func Decode(data []byte, compressed bool) (*Payload, error) {
	if len(data) > maxPayloadSize {
		return nil, fmt.Errorf("gateway: frame size %d exceeds maximum %d bytes", len(data), maxPayloadSize)
	}

	if compressed {
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gateway: opening compressed frame: %w", err)
		}
		inflated, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("gateway: inflating frame: %w", err)
		}
		if len(inflated) > maxPayloadSize {
			return nil, errors.New("gateway: inflated frame exceeds maximum size")
		}
		data = inflated
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("gateway: decoding frame: %w", err)
	}
	return &p, nil
}

// Deflate compresses a frame the way the gateway does, for tests and the
// mock server.
func Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
