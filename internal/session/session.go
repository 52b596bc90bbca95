// Package session implements the connection lifecycle state machine
// (spec.md §4.3): fetch server time, authenticate, emit Ready, dequeue
// jobs, dispatch to the search engine, submit solutions, and re-arm.
package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/make-os/kitminer/internal/hashfamily"
	"github.com/make-os/kitminer/internal/search"
	"github.com/make-os/kitminer/internal/ui"
	"github.com/make-os/kitminer/internal/wire"
	"github.com/make-os/kitminer/pkgs/logger"
	"github.com/make-os/kitminer/util"
	"github.com/pkg/errors"
)

// maxEffectiveCutoff caps an inadvertently large coordinator cutoff
// (spec.md §4.3).
const maxEffectiveCutoff = 55 * time.Second

// ErrSessionClosed marks a transport close frame (spec.md §4.3 state 6,
// §7): the session exits cleanly and the Supervisor reconnects.
var ErrSessionClosed = fmt.Errorf("session: closed by coordinator")

// ErrClockAnomaly marks a fatal local wall-clock failure (spec.md §7):
// no reasonable recovery, the Supervisor aborts rather than reconnecting.
var ErrClockAnomaly = fmt.Errorf("session: wall clock before epoch")

// Config parameterizes one Session.
type Config struct {
	// Host is the coordinator host, without scheme (e.g. "pool.example.com").
	Host string
	// Unsecure selects http/ws instead of https/wss.
	Unsecure bool
	// Threads is the number of core-pinned search threads to activate.
	Threads uint32
	// Buffer is subtracted from the coordinator cutoff and added to the
	// post-submission cooldown (spec.md §6).
	Buffer time.Duration
}

func (c Config) httpScheme() string {
	if c.Unsecure {
		return "http"
	}
	return "https"
}

func (c Config) wsScheme() string {
	if c.Unsecure {
		return "ws"
	}
	return "wss"
}

// Session holds one connection attempt's state (spec.md §3).
type Session struct {
	cfg    Config
	binder *wire.Binder
	engine *search.Engine
	ui     ui.Reporter
	log    logger.Logger

	httpClient *http.Client

	conn      *websocket.Conn
	sendMutex sync.Mutex
}

// New builds a Session. The caller owns the engine's hash family choice.
func New(cfg Config, binder *wire.Binder, family hashfamily.Family, reporter ui.Reporter, log logger.Logger) *Session {
	return &Session{
		cfg:        cfg,
		binder:     binder,
		engine:     search.NewEngine(family, cfg.Threads, log),
		ui:         reporter,
		log:        log,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// transientErr marks an error as one the Supervisor should treat as
// retryable rather than fatal.
type transientErr struct{ err error }

func (t *transientErr) Error() string { return t.err.Error() }
func (t *transientErr) Unwrap() error { return t.err }

func transient(err error) error {
	return Transient(err)
}

// Transient marks err as retryable rather than fatal (spec.md §7). Exported
// so callers composing a SessionRunner outside this package (tests, or
// alternative transports) can produce errors the Supervisor will reconnect
// on instead of aborting.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientErr{err: err}
}

// IsTransient reports whether err should trigger a reconnect rather than a
// fatal abort (spec.md §7).
func IsTransient(err error) bool {
	var t *transientErr
	return errors.As(err, &t)
}

// Run drives one full Disconnected → Terminated attempt. It returns nil on
// a clean, cancellation-driven exit, ErrSessionClosed when the coordinator
// closed the transport (spec.md §4.3 state 6: reconnect immediately, no
// backoff), a transient error (see IsTransient) on any recoverable failure,
// and a non-transient error only for conditions spec.md §7 marks fatal
// (clock anomaly).
func (s *Session) Run(ctx context.Context, cancel util.Interrupt) error {
	serverTS, err := s.fetchServerTimestamp(ctx)
	if err != nil {
		return transient(err)
	}
	s.log.Info("server timestamp", "ts", serverTS)

	if err := s.authenticate(ctx, serverTS); err != nil {
		return transient(err)
	}
	defer s.conn.Close()
	s.log.Info("connected to coordinator")

	now, err := wallClockSeconds()
	if err != nil {
		return err // clock anomaly: fatal, not transient (spec.md §7)
	}
	if err := s.sendReady(now); err != nil {
		return transient(err)
	}

	inbound := make(chan inboundFrame, 8)
	readerDone := make(chan error, 1)
	go s.readLoop(inbound, readerDone)

	for {
		select {
		case <-doneChan(cancel):
			return nil
		case err := <-readerDone:
			return s.handleReaderDone(err)
		case frame, ok := <-inbound:
			if !ok {
				// readLoop always reports to readerDone before closing
				// inbound (it sends, then returns, then its deferred
				// close(out) runs), so the error is already waiting here.
				// Reading it rather than treating the closed channel as a
				// clean exit avoids racing readerDone via select's
				// pseudo-random case choice, which would otherwise let a
				// transient read error masquerade as a clean session exit.
				return s.handleReaderDone(<-readerDone)
			}
			if cancel.IsClosed() {
				return nil
			}
			if err := s.handleFrame(ctx, cancel, frame); err != nil {
				if errors.Is(err, ErrSessionClosed) {
					return ErrSessionClosed
				}
				if !IsTransient(err) {
					return err
				}
				s.log.Warn("frame handling failed", "err", err)
			}
		}
	}
}

// handleReaderDone applies spec.md §7's disposition to the terminal error
// (or nil, for a clean EOF) reported by the transport-reader task.
func (s *Session) handleReaderDone(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrSessionClosed
	}
	return transient(err)
}

// doneChan adapts an Interrupt into something selectable.
func doneChan(cancel util.Interrupt) <-chan struct{} {
	return cancel
}

func wallClockSeconds() (uint64, error) {
	sec := time.Now().Unix()
	if sec < 0 {
		return 0, ErrClockAnomaly
	}
	return uint64(sec), nil
}

// fetchServerTimestamp implements the Disconnected → Authenticating
// transition's first half (spec.md §4.3 state 1).
func (s *Session) fetchServerTimestamp(ctx context.Context) (uint64, error) {
	url := fmt.Sprintf("%s://%s/timestamp", s.cfg.httpScheme(), s.cfg.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build timestamp request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "fetch server timestamp")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("timestamp endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, errors.Wrap(err, "read timestamp body")
	}

	ts, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse timestamp body")
	}
	return ts, nil
}

// authenticate implements the Authenticating transition (spec.md §4.3 state 2).
func (s *Session) authenticate(ctx context.Context, serverTS uint64) error {
	sig, err := s.binder.SignTimestamp(serverTS)
	if err != nil {
		return errors.Wrap(err, "sign handshake timestamp")
	}

	url := fmt.Sprintf("%s://%s/?timestamp=%d", s.cfg.wsScheme(), s.cfg.Host, serverTS)
	header := make(http.Header)
	header.Set("Authorization", basicAuth(s.binder.PublicKey().String(), string(sig)))

	dialer := websocket.DefaultDialer
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("handshake rejected (%d): %s: %w", resp.StatusCode, string(body), err)
		}
		return errors.Wrap(err, "dial coordinator")
	}
	s.conn = conn
	return nil
}

func basicAuth(user, pass string) string {
	raw := user + ":" + pass
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// sendReady implements the Ready state: emit a Ready frame (spec.md §4.3
// state 3). Ownership of the outbound writer is mutex-guarded from here on.
func (s *Session) sendReady(timestamp uint64) error {
	frame, err := s.binder.Ready(timestamp)
	if err != nil {
		return errors.Wrap(err, "build ready frame")
	}
	return s.send(frame)
}

// send transmits one frame under the single-writer mutex (spec.md §3, §5).
func (s *Session) send(frame []byte) error {
	s.sendMutex.Lock()
	defer s.sendMutex.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

type inboundFrame struct {
	messageType int
	data        []byte
}

// readLoop is the transport-reader task (spec.md §5): it owns the socket
// read side and hands decoded frames to the session task over a channel.
func (s *Session) readLoop(out chan<- inboundFrame, done chan<- error) {
	defer close(out)
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			done <- err
			return
		}
		out <- inboundFrame{messageType: msgType, data: data}
	}
}

// handleFrame implements the Running state's dispatch (spec.md §4.3 state 4).
func (s *Session) handleFrame(ctx context.Context, cancel util.Interrupt, frame inboundFrame) error {
	switch frame.messageType {
	case websocket.TextMessage:
		s.log.Info("coordinator message", "text", string(frame.data))
		return nil
	case websocket.BinaryMessage:
		if len(frame.data) == 0 {
			return nil
		}
		switch frame.data[0] {
		case wire.TypeStartMining:
			job, err := wire.DecodeStartMining(frame.data)
			if err != nil {
				return transient(err) // malformed frame: log, drop, remain in Running
			}
			return s.mine(ctx, cancel, job)
		default:
			s.log.Info("ignoring unknown binary frame", "type", frame.data[0])
			return nil
		}
	default:
		// gorilla/websocket never hands a successful (messageType, data, nil)
		// read with messageType == websocket.CloseMessage: a close control
		// frame is consumed by the library's own close handler and surfaces
		// as an error from ReadMessage, already handled by handleReaderDone
		// via websocket.IsCloseError. Nothing else reaches this case.
		return nil
	}
}

// mine implements the Mining state (spec.md §4.3 state 5): hand the job to
// the search engine, submit the result, cool down, and re-arm Ready.
func (s *Session) mine(ctx context.Context, cancel util.Interrupt, start wire.StartMining) error {
	cutoff := effectiveCutoff(time.Duration(start.CutoffSeconds)*time.Second, s.cfg.Buffer)

	job := search.Job{
		Challenge:       start.Challenge,
		NonceStart:      start.NonceStart,
		NonceEnd:        start.NonceEnd,
		EffectiveCutoff: cutoff,
	}

	s.ui.Begin("mining")
	started := time.Now()
	result := s.engine.Run(cancel, job)
	elapsed := time.Since(started)
	s.ui.Finish()
	s.ui.Report(ui.Summary{Processed: result.Processed, Elapsed: elapsed})

	if cancel.IsClosed() {
		// Cancellation observed mid-job: no partial solution is emitted
		// (spec.md §7).
		return nil
	}

	frame, err := s.binder.BestSolution(result.Best.Hash, result.Best.Nonce)
	if err != nil {
		return errors.Wrap(err, "build best solution frame")
	}
	if err := s.send(frame); err != nil {
		return transient(err)
	}

	cooldown := 5*time.Second + s.cfg.Buffer
	select {
	case <-time.After(cooldown):
	case <-doneChan(cancel):
		return nil
	}

	now, err := wallClockSeconds()
	if err != nil {
		return err
	}
	if err := s.sendReady(now); err != nil {
		return transient(err)
	}
	return nil
}

// effectiveCutoff applies the buffer subtraction and the 55s ceiling
// (spec.md §4.3): effective = min(55, max(0, cutoff - buffer)).
func effectiveCutoff(cutoff, buffer time.Duration) time.Duration {
	v := cutoff - buffer
	if v < 0 {
		v = 0
	}
	if v > maxEffectiveCutoff {
		v = maxEffectiveCutoff
	}
	return v
}
