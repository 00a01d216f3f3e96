// Package livesrv serves the live-update endpoint of sgc: a websocket that
// accepts scene and delta messages, a step loop that compiles them, and a
// file watcher that reloads scene files from disk.
package livesrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/shadergraph"
	"github.com/gogpu/shadergraph/internal/metrics"
	"github.com/gogpu/shadergraph/scene"
)

const (
	writeWait       = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	sendBuffer      = 16

	defaultReadLimit = 16 << 20
)

// Reply types sent to websocket clients.
const (
	ReplySession = "session"
	ReplyAck     = "ack"
	ReplyError   = "error"
	ReplyStatus  = "status"
)

// Reply is one message sent to a websocket client.
//
// A client receives a session reply on connect, an ack or error for every
// message it sends, and a status reply to every client after each compile.
type Reply struct {
	Type      string `json:"type"`
	Session   string `json:"session,omitempty"`
	Signature string `json:"signature,omitempty"`
	Source    string `json:"source,omitempty"`
	Rebuild   bool   `json:"rebuild,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Options configure a Server.
type Options struct {
	// Metrics, when set, records messages, sessions and compile outcomes.
	Metrics *metrics.Metrics

	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer

	// ReadLimit caps one websocket message in bytes.
	ReadLimit int64

	// OnStep is called from the step loop after every compile.
	OnStep func(shadergraph.Outcome)

	Logger *slog.Logger
}

// Server is the live-update HTTP server.
type Server struct {
	driver   *shadergraph.Driver
	opts     Options
	log      *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id   string
	conn *websocket.Conn
	send chan Reply
}

// New returns a server submitting to d.
func New(d *shadergraph.Driver, opts Options) *Server {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	log := opts.Logger
	if log == nil {
		log = shadergraph.Logger()
	}
	s := &Server{
		driver: d,
		opts:   opts,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		sessions: make(map[string]*session),
	}
	s.mux.HandleFunc("GET /live", s.handleLive)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Sessions returns the number of open websocket sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("livesrv: upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.opts.ReadLimit)

	sess := &session{id: uuid.NewString(), conn: conn, send: make(chan Reply, sendBuffer)}
	s.add(sess)
	s.log.Info("livesrv: session opened", "session", sess.id, "remote", r.RemoteAddr)

	written := make(chan struct{})
	go s.writeLoop(sess, written)

	s.enqueue(sess, Reply{Type: ReplySession, Session: sess.id})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("livesrv: read failed", "session", sess.id, "error", err)
			}
			break
		}
		s.enqueue(sess, s.handleMessage(sess.id, data))
	}

	s.remove(sess)
	close(sess.send)
	<-written
	_ = conn.Close()
	s.log.Info("livesrv: session closed", "session", sess.id)
}

func (s *Server) handleMessage(id string, data []byte) Reply {
	msg, err := scene.ParseMessage(data)
	if err != nil {
		return errorReply(id, err)
	}
	if m := s.opts.Metrics; m != nil {
		m.ObserveMessage(msg.Type)
	}
	if err := s.driver.Submit(msg); err != nil {
		return errorReply(id, err)
	}
	s.log.Debug("livesrv: message queued", "session", id, "type", msg.Type)
	return Reply{Type: ReplyAck, Session: id}
}

func errorReply(id string, err error) Reply {
	return Reply{Type: ReplyError, Session: id, Error: err.Error(), Kind: shadergraph.ErrorKind(err)}
}

func (s *Server) writeLoop(sess *session, done chan<- struct{}) {
	defer close(done)
	for r := range sess.send {
		_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sess.conn.WriteJSON(r); err != nil {
			s.log.Warn("livesrv: write failed", "session", sess.id, "error", err)
			// Unblock the reader; remaining replies are drained below.
			_ = sess.conn.Close()
			break
		}
	}
	for range sess.send {
	}
}

// enqueue never blocks; a client that stops reading loses replies.
func (s *Server) enqueue(sess *session, r Reply) {
	select {
	case sess.send <- r:
	default:
		s.log.Warn("livesrv: reply dropped", "session", sess.id, "type", r.Type)
	}
}

func (s *Server) add(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	if m := s.opts.Metrics; m != nil {
		m.SessionOpened()
	}
}

func (s *Server) remove(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	if m := s.opts.Metrics; m != nil {
		m.SessionClosed()
	}
}

func (s *Server) broadcast(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		s.enqueue(sess, r)
	}
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		_ = sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = sess.conn.Close()
	}
}

type health struct {
	Status    string `json:"status"`
	Sessions  int    `json:"sessions"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := health{Status: "ok", Sessions: s.Sessions()}
	if res := s.driver.Active(); res != nil {
		h.Signature = signature(res.Signature)
		if res.Error != nil {
			h.Status = "error-pipeline"
			h.Error = res.Error.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h); err != nil {
		s.log.Warn("livesrv: health write failed", "error", err)
	}
}

func signature(sig uint64) string { return fmt.Sprintf("%016x", sig) }

// Loop compiles queued scenes until ctx is done. It is the only caller of
// the driver's Step.
func (s *Server) Loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.driver.Pending():
		}
		out, ok := s.driver.Step()
		if !ok {
			continue
		}
		s.report(out)
	}
}

func (s *Server) report(out shadergraph.Outcome) {
	if m := s.opts.Metrics; m != nil {
		m.SetSuperseded(s.driver.Dropped())
		if out.Rebuild {
			m.ObserveRebuild()
		}
	}
	if s.opts.OnStep != nil {
		s.opts.OnStep(out)
	}
	r := Reply{
		Type:      ReplyStatus,
		Signature: signature(out.Active.Signature),
		Source:    out.Source.String(),
		Rebuild:   out.Rebuild,
	}
	if out.Err != nil {
		r.Error = out.Err.Error()
		r.Kind = shadergraph.ErrorKind(out.Err)
	}
	s.broadcast(r)
}

// Serve serves HTTP on ln until ctx is done, then closes open sessions and
// shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("livesrv: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.closeSessions()
		return srv.Shutdown(sctx)
	})
	s.log.Info("livesrv: listening", "addr", ln.Addr().String())
	return g.Wait()
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("livesrv: %w", err)
	}
	return s.Serve(ctx, ln)
}
