package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var dialer = &websocket.Dialer{HandshakeTimeout: 30 * time.Second}

// Handler consumes dispatch frames from a shard. Handle is called from the
// shard's read loop, one frame at a time in arrival order. A returned
// error is logged and delivery continues with the next frame.
type Handler interface {
	Handle(ctx context.Context, shard int, title string, data json.RawMessage) error
}

// Config configures a Shard.
type Config struct {
	// URL is the gateway endpoint from the REST discovery call.
	URL     string
	Token   string
	Intents uint64

	// ID and Count form the shard tuple sent on IDENTIFY.
	ID    int
	Count int

	// Compress asks the gateway for zlib-compressed payloads.
	Compress bool

	// Handler receives every dispatch frame.
	Handler Handler

	// OnFreshSession is called when the shard identifies from scratch
	// while replacing an earlier session. Optional.
	OnFreshSession func(shardID int)

	// Identify is the shared identify limiter. All shards of one client
	// must share the instance; nil gets a private one.
	Identify *rate.Limiter

	Logger *slog.Logger
}

// Shard owns one gateway connection: handshake, heartbeat, send pump and
// read loop, plus reconnects with session resumption.
type Shard struct {
	cfg      Config
	log      *slog.Logger
	commands *rate.Limiter

	mu        sync.Mutex
	conn      *websocket.Conn
	opened    bool
	cancel    context.CancelFunc
	sessionID string
	resumeURL string
	err       error

	seq      atomic.Int64
	acked    atomic.Bool
	beatSent atomic.Int64
	ackRecv  atomic.Int64

	// hadSession is touched only by the run goroutine.
	hadSession bool

	ready     chan struct{}
	readyOnce sync.Once
	errOnce   sync.Once
	fatal     chan struct{}
	done      chan struct{}
}

// NewShard builds a shard. Open must be called to connect it.
func NewShard(cfg Config) *Shard {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Identify == nil {
		cfg.Identify = NewIdentifyLimiter()
	}
	if cfg.Count <= 0 {
		cfg.Count = 1
	}
	return &Shard{
		cfg:      cfg,
		log:      cfg.Logger.With("shard", cfg.ID),
		commands: newSendLimiter(),
		ready:    make(chan struct{}),
		fatal:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ID returns the shard number.
func (s *Shard) ID() int { return s.cfg.ID }

// Count returns the total shard count of the session.
func (s *Shard) Count() int { return s.cfg.Count }

// Latency returns the delay between the last heartbeat and its ACK, or
// zero before the first round trip completes.
func (s *Shard) Latency() time.Duration {
	sent, acked := s.beatSent.Load(), s.ackRecv.Load()
	if sent == 0 || acked < sent {
		return 0
	}
	return time.Duration(acked - sent)
}

// Done is closed when the shard has stopped for good.
func (s *Shard) Done() <-chan struct{} { return s.done }

// Err reports why the shard stopped, nil for a requested Close.
func (s *Shard) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Open dials the gateway and blocks until the first session handshake
// completes. The connection then maintains itself in the background until
// Close or an unrecoverable close code.
func (s *Shard) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.opened {
		s.mu.Unlock()
		return errors.New("gateway: shard already open")
	}
	s.opened = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx)

	select {
	case <-s.ready:
		return nil
	case <-s.fatal:
		return s.Err()
	case <-s.done:
		if err := s.Err(); err != nil {
			return err
		}
		return errors.New("gateway: shard closed before ready")
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}
}

// Close stops the shard, sending a normal closure frame when a connection
// is up. It is safe to call more than once.
func (s *Shard) Close() error {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return nil
	}
	cancel, conn := s.cancel, s.conn
	s.mu.Unlock()

	cancel()
	if conn != nil {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		conn.Close()
	}
	<-s.done
	return nil
}

func (s *Shard) signalReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Shard) fail(err error) {
	s.errOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.log.Error("shard stopped", "error", err)
		close(s.fatal)
	})
}

// run cycles connection lifetimes until the context ends or a session
// reports an unrecoverable condition.
func (s *Shard) run(ctx context.Context) {
	defer close(s.done)

	var (
		resume   bool
		failures int
	)
	for {
		next, stop, err := s.session(ctx, resume)
		if stop || ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			s.log.Warn("gateway session ended", "error", err, "failures", failures)
		} else {
			failures = 0
		}
		resume = next

		delay := backoffDelay(failures)
		s.log.Info("reconnecting to gateway", "delay", delay, "resume", resume)
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// session runs one connection lifetime. It reports whether the next
// attempt should resume, whether the shard must stop, and any transient
// error worth backing off for.
func (s *Shard) session(ctx context.Context, resume bool) (resumeNext, stop bool, err error) {
	endpoint := s.dialURL(resume)
	log := s.log.With("conn", uuid.New().String())

	log.Debug("dialing gateway", "url", endpoint, "resume", resume)
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return resume, false, fmt.Errorf("gateway: dialing %s: %w", endpoint, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		conn.Close()
		wg.Wait()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	hello, err := readHello(conn)
	if err != nil {
		return resume, false, err
	}
	interval := time.Duration(hello.HeartbeatInterval * float64(time.Millisecond))
	log.Debug("received hello", "heartbeat_interval", interval)

	sendCh := make(chan []byte, 64)
	beat := make(chan struct{}, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writePump(connCtx, conn, sendCh)
	}()
	go func() {
		defer wg.Done()
		s.heartbeat(connCtx, conn, sendCh, interval, beat)
	}()

	s.mu.Lock()
	resuming := resume && s.sessionID != ""
	sessionID := s.sessionID
	s.mu.Unlock()

	if resuming {
		log.Info("resuming session", "session_id", sessionID, "seq", s.seq.Load())
		data, err := Encode(OpResume, Resume{
			Token:     s.cfg.Token,
			SessionID: sessionID,
			Seq:       s.seq.Load(),
		})
		if err != nil {
			return false, false, err
		}
		if err := s.enqueue(connCtx, sendCh, data); err != nil {
			return true, false, err
		}
	} else {
		s.seq.Store(0)
		s.mu.Lock()
		s.sessionID = ""
		s.mu.Unlock()

		if err := s.cfg.Identify.Wait(connCtx); err != nil {
			return false, false, nil
		}
		log.Info("identifying", "intents", s.cfg.Intents, "shard_count", s.cfg.Count)
		data, err := Encode(OpIdentify, Identify{
			Token: s.cfg.Token,
			Properties: IdentifyProperties{
				OS:      runtime.GOOS,
				Browser: "herald",
				Device:  "herald",
			},
			Intents:  s.cfg.Intents,
			Compress: s.cfg.Compress,
			Shard:    [2]int{s.cfg.ID, s.cfg.Count},
		})
		if err != nil {
			return false, false, err
		}
		if err := s.enqueue(connCtx, sendCh, data); err != nil {
			return false, false, err
		}
	}

	return s.readLoop(ctx, conn, interval, beat, log)
}

// readLoop consumes frames until the connection ends, forwarding every
// dispatch to the handler in arrival order.
func (s *Shard) readLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration, beat chan<- struct{}, log *slog.Logger) (resumeNext, stop bool, err error) {
	for {
		conn.SetReadDeadline(time.Now().Add(interval*2 + 30*time.Second))
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return false, false, nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				if FatalCloseCode(closeErr.Code) {
					s.fail(fmt.Errorf("gateway: connection closed: %d %s", closeErr.Code, closeErr.Text))
					return false, true, nil
				}
				log.Warn("gateway closed connection", "code", closeErr.Code, "reason", closeErr.Text)
				return ResumableCloseCode(closeErr.Code), false, nil
			}
			return true, false, fmt.Errorf("gateway: reading frame: %w", err)
		}

		p, err := Decode(data, mt == websocket.BinaryMessage)
		if err != nil {
			log.Error("dropping undecodable frame", "error", err)
			continue
		}

		switch p.Op {
		case OpDispatch:
			if p.Seq > 0 {
				s.seq.Store(p.Seq)
			}
			s.handleDispatch(ctx, p, log)

		case OpHeartbeat:
			select {
			case beat <- struct{}{}:
			default:
			}

		case OpHeartbeatACK:
			s.ackRecv.Store(time.Now().UnixNano())
			s.acked.Store(true)

		case OpReconnect:
			log.Info("gateway requested reconnect")
			return true, false, nil

		case OpInvalidSession:
			var resumable bool
			json.Unmarshal(p.Data, &resumable)
			log.Warn("session invalidated", "resumable", resumable)
			if !resumable {
				// The gateway wants a short pause before a fresh identify.
				sleepCtx(ctx, time.Duration(1+rand.IntN(5))*time.Second)
			}
			return resumable, false, nil

		default:
			log.Debug("ignoring frame", "op", p.Op)
		}
	}
}

func (s *Shard) handleDispatch(ctx context.Context, p *Payload, log *slog.Logger) {
	switch p.Title {
	case "READY":
		var ready Ready
		if err := json.Unmarshal(p.Data, &ready); err != nil {
			log.Error("decoding ready", "error", err)
		} else {
			s.mu.Lock()
			s.sessionID = ready.SessionID
			s.resumeURL = ready.ResumeGatewayURL
			s.mu.Unlock()
			log.Info("session established", "session_id", ready.SessionID)
		}
		if s.hadSession && s.cfg.OnFreshSession != nil {
			s.cfg.OnFreshSession(s.cfg.ID)
		}
		s.hadSession = true
		s.signalReady()

	case "RESUMED":
		log.Info("session resumed")
		s.signalReady()
	}

	if s.cfg.Handler == nil {
		return
	}
	if err := s.cfg.Handler.Handle(ctx, s.cfg.ID, p.Title, p.Data); err != nil {
		log.Error("event handler failed", "event", p.Title, "error", err)
	}
}

// heartbeat sends {op:1,d:seq} every interval, with a jittered first beat.
// A missing ACK means the connection is a zombie; closing it makes the
// read loop fail over to a resume.
func (s *Shard) heartbeat(ctx context.Context, conn *websocket.Conn, sendCh chan<- []byte, interval time.Duration, beat <-chan struct{}) {
	s.acked.Store(true)
	timer := time.NewTimer(time.Duration(rand.Float64() * float64(interval)))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if !s.acked.Load() {
				s.log.Warn("heartbeat ack missing, recycling connection")
				conn.Close()
				return
			}
			s.sendBeat(ctx, sendCh)
			timer.Reset(interval)

		case <-beat:
			s.sendBeat(ctx, sendCh)

		case <-ctx.Done():
			return
		}
	}
}

func (s *Shard) sendBeat(ctx context.Context, sendCh chan<- []byte) {
	data, err := Encode(OpHeartbeat, s.seq.Load())
	if err != nil {
		return
	}
	s.acked.Store(false)
	s.beatSent.Store(time.Now().UnixNano())
	// Heartbeats bypass the command limiter.
	select {
	case sendCh <- data:
	case <-ctx.Done():
	}
}

// writePump is the single writer of the connection. A failed write closes
// the connection so the read loop notices.
func (s *Shard) writePump(ctx context.Context, conn *websocket.Conn, sendCh <-chan []byte) {
	for {
		select {
		case data := <-sendCh:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Error("gateway write failed", "error", err)
				conn.Close()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// enqueue pushes one frame through the command limiter onto the pump.
func (s *Shard) enqueue(ctx context.Context, sendCh chan<- []byte, data []byte) error {
	if err := s.commands.Wait(ctx); err != nil {
		return err
	}
	select {
	case sendCh <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func readHello(conn *websocket.Conn) (*Hello, error) {
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("gateway: reading hello: %w", err)
	}
	p, err := Decode(data, mt == websocket.BinaryMessage)
	if err != nil {
		return nil, err
	}
	if p.Op != OpHello {
		return nil, fmt.Errorf("gateway: expected hello, got op %d", p.Op)
	}
	var hello Hello
	if err := json.Unmarshal(p.Data, &hello); err != nil {
		return nil, fmt.Errorf("gateway: decoding hello: %w", err)
	}
	return &hello, nil
}

// dialURL appends the protocol version to the configured endpoint, or to
// the session's resume endpoint when resuming.
func (s *Shard) dialURL(resume bool) string {
	base := s.cfg.URL
	if resume {
		s.mu.Lock()
		if s.resumeURL != "" {
			base = s.resumeURL
		}
		s.mu.Unlock()
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.RawQuery = "v=10&encoding=json"
	return u.String()
}

func backoffDelay(failures int) time.Duration {
	if failures == 0 {
		return time.Second
	}
	return time.Duration(1<<min(failures, 6)) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
