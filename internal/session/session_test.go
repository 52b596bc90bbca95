package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/make-os/kitminer/internal/hashfamily"
	"github.com/make-os/kitminer/internal/identity"
	"github.com/make-os/kitminer/internal/ui"
	"github.com/make-os/kitminer/internal/wire"
	"github.com/make-os/kitminer/pkgs/logger"
	"github.com/make-os/kitminer/util"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	It("should derive http/ws schemes from Unsecure", func() {
		secure := Config{Host: "pool.example.com"}
		Expect(secure.httpScheme()).To(Equal("https"))
		Expect(secure.wsScheme()).To(Equal("wss"))

		unsecure := Config{Host: "localhost:8080", Unsecure: true}
		Expect(unsecure.httpScheme()).To(Equal("http"))
		Expect(unsecure.wsScheme()).To(Equal("ws"))
	})
})

var _ = Describe("effectiveCutoff", func() {
	It("should subtract the buffer from the cutoff", func() {
		Expect(effectiveCutoff(20*time.Second, 3*time.Second)).To(Equal(17 * time.Second))
	})

	It("should floor at zero", func() {
		Expect(effectiveCutoff(2*time.Second, 5*time.Second)).To(Equal(time.Duration(0)))
	})

	It("should cap at 55 seconds", func() {
		Expect(effectiveCutoff(120*time.Second, 0)).To(Equal(maxEffectiveCutoff))
	})
})

var _ = Describe("transient", func() {
	It("should wrap and unwrap through IsTransient", func() {
		base := errors.New("connection reset")
		wrapped := transient(base)

		Expect(IsTransient(wrapped)).To(BeTrue())
		Expect(IsTransient(base)).To(BeFalse())
		Expect(transient(nil)).To(BeNil())
	})

	It("should preserve errors.Is through the wrap", func() {
		wrapped := transient(io.EOF)
		Expect(errors.Is(wrapped, io.EOF)).To(BeTrue())
	})
})

var _ = Describe("Session.handleFrame", func() {
	It("should ignore a frame type gorilla/websocket never delivers from ReadMessage", func() {
		// A Close control frame surfaces as an error from ReadMessage (handled
		// by handleReaderDone via websocket.IsCloseError), never as a
		// successful read with this messageType, but handleFrame's default
		// case must still not misbehave if one ever reached it.
		s := &Session{log: logger.NewLogrus()}
		err := s.handleFrame(context.Background(), util.NewInterrupt(), inboundFrame{messageType: websocket.CloseMessage})
		Expect(err).To(BeNil())
	})

	It("should ignore an unrecognized binary frame type", func() {
		s := &Session{log: logger.NewLogrus()}
		frame := inboundFrame{messageType: websocket.BinaryMessage, data: []byte{0x7f, 0x01}}
		err := s.handleFrame(context.Background(), util.NewInterrupt(), frame)
		Expect(err).To(BeNil())
	})

	It("should log and ignore a text frame", func() {
		s := &Session{log: logger.NewLogrus()}
		frame := inboundFrame{messageType: websocket.TextMessage, data: []byte("hello")}
		err := s.handleFrame(context.Background(), util.NewInterrupt(), frame)
		Expect(err).To(BeNil())
	})
})

var _ = Describe("Session.handleReaderDone", func() {
	It("should treat a nil or io.EOF error as a clean exit", func() {
		s := &Session{log: logger.NewLogrus()}
		Expect(s.handleReaderDone(nil)).To(BeNil())
		Expect(s.handleReaderDone(io.EOF)).To(BeNil())
	})

	It("should map a normal close error to ErrSessionClosed", func() {
		s := &Session{log: logger.NewLogrus()}
		closeErr := &websocket.CloseError{Code: websocket.CloseNormalClosure}
		Expect(errors.Is(s.handleReaderDone(closeErr), ErrSessionClosed)).To(BeTrue())
	})

	It("should mark any other read error transient", func() {
		s := &Session{log: logger.NewLogrus()}
		err := s.handleReaderDone(errors.New("connection reset"))
		Expect(IsTransient(err)).To(BeTrue())
	})
})

var _ = Describe("wallClockSeconds", func() {
	// wallClockSeconds reads the real clock, so this only exercises the
	// normal (non-anomalous) path; the ErrClockAnomaly branch is unreachable
	// without mocking time.Now, matching spec.md §7's "no reasonable
	// recovery" framing for this condition.
	It("should return a positive timestamp with no error", func() {
		ts, err := wallClockSeconds()
		Expect(err).To(BeNil())
		Expect(ts).To(BeNumerically(">", 0))
	})
})

// startFakeCoordinator stands up an httptest server serving /timestamp and
// a websocket upgrade at "/", following the teacher's
// rpc/handler_test.go:380-416 pattern (httptest.NewServer + a gorilla
// upgrader/dialer pair). It reads exactly three inbound frames from the
// worker (Ready, BestSolution, Ready) onto the returned channel, dispatching
// a tiny StartMining job right after the first.
func startFakeCoordinator() (*httptest.Server, <-chan []byte) {
	frames := make(chan []byte, 3)
	upgrader := websocket.Upgrader{}

	job := make([]byte, 1+32+8+8+8)
	job[0] = wire.TypeStartMining
	for i := 0; i < 32; i++ {
		job[1+i] = 0x11
	}
	binary.LittleEndian.PutUint64(job[33:41], 1)  // cutoff_seconds
	binary.LittleEndian.PutUint64(job[41:49], 0)  // nonce_start
	binary.LittleEndian.PutUint64(job[49:57], 50) // nonce_end: well under CutoffCheckPeriod

	mux := http.NewServeMux()
	mux.HandleFunc("/timestamp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "1700000000")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 3; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cp := append([]byte(nil), data...)
			frames <- cp
			if i == 0 {
				if err := conn.WriteMessage(websocket.BinaryMessage, job); err != nil {
					return
				}
			}
		}
		// Block on a further read rather than returning (which would close
		// the connection from this side): the test cancels the Session
		// after observing all 3 frames, and Session.Run closes its own
		// connection on the way out, so the coordinator side should only
		// ever see the worker-initiated close, never race one of its own.
		conn.ReadMessage()
	})
	return httptest.NewServer(mux), frames
}

var _ = Describe("Session.Run", func() {
	// Drives a Session through its full Disconnected -> Authenticating ->
	// Ready -> Running -> Mining -> Terminated cycle against a fake
	// coordinator, asserting spec.md §8 property #2: the first outbound
	// frame is a Ready, and one StartMining intake is followed by exactly
	// one BestSolution then one subsequent Ready.
	It("should emit Ready, then BestSolution, then a fresh Ready for one job", func() {
		server, frames := startFakeCoordinator()
		defer server.Close()

		signer, err := identity.NewEd25519Signer()
		Expect(err).To(BeNil())
		binder := wire.NewBinder(signer)

		log := logger.NewLogrus()
		log.SetToError()

		cfg := Config{
			Host:     strings.TrimPrefix(server.URL, "http://"),
			Unsecure: true,
			Threads:  1,
		}
		sess := New(cfg, binder, hashfamily.NewBlake2bFamily(), ui.Nop{}, log)

		cancel := util.NewInterrupt()
		runDone := make(chan error, 1)
		go func() { runDone <- sess.Run(context.Background(), cancel) }()

		var got [][]byte
		for i := 0; i < 3; i++ {
			select {
			case f := <-frames:
				got = append(got, f)
			case <-time.After(10 * time.Second):
				Fail("timed out waiting for the coordinator to observe 3 frames")
			}
		}

		Expect(got[0][0]).To(Equal(wire.TypeReady), "first outbound frame must be Ready")
		Expect(got[1][0]).To(Equal(wire.TypeBestSolution), "second outbound frame must be the job's BestSolution")
		Expect(got[2][0]).To(Equal(wire.TypeReady), "third outbound frame must be a fresh Ready after the cooldown")

		cancel.Close()
		select {
		case err := <-runDone:
			Expect(err).To(BeNil())
		case <-time.After(5 * time.Second):
			Fail("Session.Run did not observe cancellation after the cycle completed")
		}
	})
})
