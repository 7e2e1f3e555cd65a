package adapter

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/go-dap"
	"github.com/google/uuid"

	apperrors "github.com/tmajors/dapbridge/internal/errors"
	"github.com/tmajors/dapbridge/internal/source"
	"github.com/tmajors/dapbridge/pkg/types"
)

// EngineDialer produces a connected engine for a new session.
type EngineDialer func(ctx context.Context) (Engine, error)

// Server owns the session registry and serves editor connections. Each
// accepted connection gets its own session and engine; sessions created
// through the MCP surface live in the same registry without an editor
// connection.
type Server struct {
	dialer EngineDialer
	mapper source.Mapper
	log    *slog.Logger

	maxSessions    int
	sessionTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server. A sessionTimeout of zero disables idle
// session cleanup.
func NewServer(dialer EngineDialer, mapper source.Mapper, maxSessions int, sessionTimeout time.Duration, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		dialer:         dialer,
		mapper:         mapper,
		log:            log,
		maxSessions:    maxSessions,
		sessionTimeout: sessionTimeout,
		sessions:       make(map[string]*Session),
		ctx:            ctx,
		cancel:         cancel,
	}
	if sessionTimeout > 0 {
		go srv.cleanupLoop()
	}
	return srv
}

// CreateSession dials an engine and registers a new session for it.
func (srv *Server) CreateSession(ctx context.Context) (*Session, error) {
	srv.mu.Lock()
	if srv.maxSessions > 0 && len(srv.sessions) >= srv.maxSessions {
		srv.mu.Unlock()
		return nil, apperrors.SessionLimitReached(srv.maxSessions)
	}
	srv.mu.Unlock()

	eng, err := srv.dialer(ctx)
	if err != nil {
		return nil, apperrors.EngineLost(err)
	}

	sess := NewSession(uuid.New().String(), eng, srv.mapper, srv.log)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.maxSessions > 0 && len(srv.sessions) >= srv.maxSessions {
		// lost the race to another create
		sess.Close()
		return nil, apperrors.SessionLimitReached(srv.maxSessions)
	}
	srv.sessions[sess.ID()] = sess
	return sess, nil
}

// GetSession retrieves a registered session by id.
func (srv *Server) GetSession(id string) (*Session, error) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	sess, ok := srv.sessions[id]
	if !ok {
		return nil, apperrors.SessionNotFound(id)
	}
	return sess, nil
}

// ListSessions summarizes all registered sessions.
func (srv *Server) ListSessions() []types.SessionInfo {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	infos := make([]types.SessionInfo, 0, len(srv.sessions))
	for _, sess := range srv.sessions {
		infos = append(infos, sess.Info())
	}
	return infos
}

// RemoveSession unregisters and closes a session.
func (srv *Server) RemoveSession(id string) error {
	srv.mu.Lock()
	sess, ok := srv.sessions[id]
	delete(srv.sessions, id)
	srv.mu.Unlock()
	if !ok {
		return apperrors.SessionNotFound(id)
	}
	sess.Close()
	return nil
}

func (srv *Server) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-srv.ctx.Done():
			return
		case <-ticker.C:
			srv.cleanupExpiredSessions()
		}
	}
}

func (srv *Server) cleanupExpiredSessions() {
	srv.mu.Lock()
	var expired []*Session
	now := time.Now()
	for id, sess := range srv.sessions {
		if now.Sub(sess.CreatedAt()) > srv.sessionTimeout {
			expired = append(expired, sess)
			delete(srv.sessions, id)
		}
	}
	srv.mu.Unlock()

	for _, sess := range expired {
		srv.log.Info("closing expired session", "session", sess.ID())
		if err := sess.Disconnect(srv.ctx); err != nil {
			srv.log.Debug("disconnect expired session", "err", err)
		}
		sess.Close()
	}
}

// Close shuts the server down, closing every session.
func (srv *Server) Close() {
	srv.cancel()
	srv.mu.Lock()
	sessions := srv.sessions
	srv.sessions = make(map[string]*Session)
	srv.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}

// Serve accepts editor connections and serves one session per connection
// until the listener closes.
func (srv *Server) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-srv.ctx.Done():
				return nil
			default:
			}
			return err
		}
		go func() {
			defer conn.Close()
			if err := srv.ServeConn(srv.ctx, conn, conn); err != nil {
				srv.log.Error("connection ended with error", "err", err)
			}
		}()
	}
}

// ServeStdio serves a single session over stdin/stdout.
func (srv *Server) ServeStdio(ctx context.Context) error {
	return srv.ServeConn(ctx, os.Stdin, os.Stdout)
}

// ServeConn runs one editor connection to completion: it creates a
// session, copies its outgoing messages to w, and dispatches incoming
// requests until the stream ends or the editor disconnects.
func (srv *Server) ServeConn(ctx context.Context, r io.Reader, w io.Writer) error {
	sess, err := srv.CreateSession(ctx)
	if err != nil {
		return err
	}

	var writeWg sync.WaitGroup
	writeWg.Add(1)
	go func() {
		defer writeWg.Done()
		bw := bufio.NewWriter(w)
		for msg := range sess.Messages() {
			if err := dap.WriteProtocolMessage(bw, msg); err != nil {
				srv.log.Error("failed to write message", "err", err)
				return
			}
			if err := bw.Flush(); err != nil {
				srv.log.Error("failed to flush message", "err", err)
				return
			}
		}
	}()

	reader := bufio.NewReader(r)
	for {
		msg, err := dap.ReadProtocolMessage(reader)
		if err != nil {
			var decodeErr *dap.DecodeProtocolMessageFieldError
			if errors.As(err, &decodeErr) {
				// a single malformed request does not end the session
				command := ""
				if decodeErr.FieldName == "command" {
					command = decodeErr.FieldValue
				}
				sess.send(newErrorResponse(decodeErr.Seq, command, apperrors.UnrecognizedRequest(command)))
				continue
			}
			if !errors.Is(err, io.EOF) {
				srv.log.Error("failed to read message", "err", err)
			}
			break
		}
		sess.HandleMessage(msg)
	}

	// covers an editor that went away without a disconnect request
	if err := sess.Disconnect(ctx); err != nil {
		srv.log.Debug("disconnect on stream end", "err", err)
	}
	if err := srv.RemoveSession(sess.ID()); err != nil {
		srv.log.Debug("remove session", "err", err)
	}
	writeWg.Wait()
	return nil
}
