package gateway

import (
	"encoding/json"
	"testing"
)

// TestDecode tests frame decoding for plain and compressed frames.
func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		data       []byte
		compressed bool
		wantOp     int
		wantTitle  string
		wantSeq    int64
		wantError  bool
	}{
		{
			name:   "hello frame",
			data:   []byte(`{"op":10,"d":{"heartbeat_interval":41250}}`),
			wantOp: OpHello,
		},
		{
			name:      "dispatch frame",
			data:      []byte(`{"op":0,"s":42,"t":"MESSAGE_CREATE","d":{"id":"1"}}`),
			wantOp:    OpDispatch,
			wantTitle: "MESSAGE_CREATE",
			wantSeq:   42,
		},
		{
			name:   "heartbeat ack",
			data:   []byte(`{"op":11}`),
			wantOp: OpHeartbeatACK,
		},
		{
			name:      "invalid json",
			data:      []byte(`{"op":`),
			wantError: true,
		},
		{
			name:       "garbage compressed data",
			data:       []byte("not zlib"),
			compressed: true,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := Decode(tt.data, tt.compressed)
			if (err != nil) != tt.wantError {
				t.Errorf("Decode() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if tt.wantError {
				return
			}
			if p.Op != tt.wantOp {
				t.Errorf("Op = %d, want %d", p.Op, tt.wantOp)
			}
			if p.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", p.Title, tt.wantTitle)
			}
			if p.Seq != tt.wantSeq {
				t.Errorf("Seq = %d, want %d", p.Seq, tt.wantSeq)
			}
		})
	}
}

// TestDecodeCompressed tests that a deflated frame inflates back to the
// original payload.
func TestDecodeCompressed(t *testing.T) {
	t.Parallel()

	plain := []byte(`{"op":0,"s":7,"t":"GUILD_CREATE","d":{"id":"42","name":"test"}}`)
	deflated, err := Deflate(plain)
	if err != nil {
		t.Fatalf("Deflate() error = %v", err)
	}

	p, err := Decode(deflated, true)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.Op != OpDispatch {
		t.Errorf("Op = %d, want %d", p.Op, OpDispatch)
	}
	if p.Title != "GUILD_CREATE" {
		t.Errorf("Title = %q, want %q", p.Title, "GUILD_CREATE")
	}

	var guild struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(p.Data, &guild); err != nil {
		t.Fatalf("Unmarshal(Data) error = %v", err)
	}
	if guild.ID != "42" || guild.Name != "test" {
		t.Errorf("guild = %+v, want id 42 name test", guild)
	}
}

// TestDecodeOversizedFrame tests the frame size guard.
func TestDecodeOversizedFrame(t *testing.T) {
	t.Parallel()

	if _, err := Decode(make([]byte, maxPayloadSize+1), false); err == nil {
		t.Error("Decode() error = nil, want size error")
	}
}

// TestEncode tests frame encoding round trips through Decode.
func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		op     int
		d      any
		wantOp int
	}{
		{"heartbeat with seq", OpHeartbeat, int64(312), OpHeartbeat},
		{"heartbeat ack", OpHeartbeatACK, nil, OpHeartbeatACK},
		{
			"identify",
			OpIdentify,
			Identify{Token: "tok", Intents: 513, Shard: [2]int{0, 1}},
			OpIdentify,
		},
		{
			"resume",
			OpResume,
			Resume{Token: "tok", SessionID: "abc", Seq: 10},
			OpResume,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := Encode(tt.op, tt.d)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			p, err := Decode(data, false)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if p.Op != tt.wantOp {
				t.Errorf("Op = %d, want %d", p.Op, tt.wantOp)
			}
		})
	}
}

// TestCloseCodeClassification tests which close codes may be retried and
// which may be resumed.
func TestCloseCodeClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		code          int
		wantFatal     bool
		wantResumable bool
	}{
		{"unknown error", CloseUnknownError, false, true},
		{"rate limited", CloseRateLimited, false, true},
		{"invalid seq", CloseInvalidSeq, false, false},
		{"session timed out", CloseSessionTimedOut, false, false},
		{"authentication failed", CloseAuthenticationFailed, true, false},
		{"invalid intents", CloseInvalidIntents, true, false},
		{"disallowed intents", CloseDisallowedIntents, true, false},
		{"sharding required", CloseShardingRequired, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := FatalCloseCode(tt.code); got != tt.wantFatal {
				t.Errorf("FatalCloseCode(%d) = %v, want %v", tt.code, got, tt.wantFatal)
			}
			if got := ResumableCloseCode(tt.code); got != tt.wantResumable {
				t.Errorf("ResumableCloseCode(%d) = %v, want %v", tt.code, got, tt.wantResumable)
			}
		})
	}
}

// BenchmarkDecodeDispatch benchmarks plain dispatch decoding.
func BenchmarkDecodeDispatch(b *testing.B) {
	data := []byte(`{"op":0,"s":42,"t":"MESSAGE_CREATE","d":{"id":"1","content":"hello world"}}`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(data, false)
	}
}

// BenchmarkDecodeCompressed benchmarks zlib frame decoding.
func BenchmarkDecodeCompressed(b *testing.B) {
	data, err := Deflate([]byte(`{"op":0,"s":42,"t":"MESSAGE_CREATE","d":{"id":"1","content":"hello world"}}`))
	if err != nil {
		b.Fatalf("Deflate() error = %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(data, true)
	}
}
