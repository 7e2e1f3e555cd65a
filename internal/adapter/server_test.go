package adapter

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tmajors/dapbridge/internal/errors"
	"github.com/tmajors/dapbridge/internal/source"
)

func fakeDialer() EngineDialer {
	return func(ctx context.Context) (Engine, error) {
		return newFakeEngine(), nil
	}
}

func newTestServer(t *testing.T, maxSessions int) *Server {
	t.Helper()
	srv := NewServer(fakeDialer(), source.Identity{}, maxSessions, 0, slog.Default())
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateAndGetSession(t *testing.T) {
	srv := newTestServer(t, 10)

	sess, err := srv.CreateSession(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID())

	got, err := srv.GetSession(sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, got)

	infos := srv.ListSessions()
	require.Len(t, infos, 1)
	assert.Equal(t, sess.ID(), infos[0].SessionID)
}

func TestGetUnknownSession(t *testing.T) {
	srv := newTestServer(t, 10)

	_, err := srv.GetSession("nope")
	assert.Equal(t, apperrors.CodeSessionNotFound, apperrors.CodeOf(err))
}

func TestSessionLimit(t *testing.T) {
	srv := newTestServer(t, 2)
	ctx := context.Background()

	_, err := srv.CreateSession(ctx)
	require.NoError(t, err)
	sess, err := srv.CreateSession(ctx)
	require.NoError(t, err)

	_, err = srv.CreateSession(ctx)
	assert.Equal(t, apperrors.CodeSessionLimitReached, apperrors.CodeOf(err))

	// removing one frees a slot
	require.NoError(t, srv.RemoveSession(sess.ID()))
	_, err = srv.CreateSession(ctx)
	assert.NoError(t, err)
}

func TestRemoveSession(t *testing.T) {
	srv := newTestServer(t, 10)

	sess, err := srv.CreateSession(context.Background())
	require.NoError(t, err)

	require.NoError(t, srv.RemoveSession(sess.ID()))
	_, err = srv.GetSession(sess.ID())
	assert.Equal(t, apperrors.CodeSessionNotFound, apperrors.CodeOf(err))

	err = srv.RemoveSession(sess.ID())
	assert.Equal(t, apperrors.CodeSessionNotFound, apperrors.CodeOf(err))
}

func TestDialFailure(t *testing.T) {
	dialer := func(ctx context.Context) (Engine, error) {
		return nil, assert.AnError
	}
	srv := NewServer(dialer, source.Identity{}, 10, 0, slog.Default())
	t.Cleanup(srv.Close)

	_, err := srv.CreateSession(context.Background())
	assert.Equal(t, apperrors.CodeEngineUnavailable, apperrors.CodeOf(err))
	assert.Empty(t, srv.ListSessions())
}

func TestServeConnRoundTrip(t *testing.T) {
	srv := newTestServer(t, 10)

	editorIn, serverOut := io.Pipe() // adapter writes, editor reads
	serverIn, editorOut := io.Pipe() // editor writes, adapter reads

	done := make(chan error, 1)
	go func() { done <- srv.ServeConn(context.Background(), serverIn, serverOut) }()

	require.NoError(t, dap.WriteProtocolMessage(editorOut, &dap.InitializeRequest{
		Request:   newRequest(1, "initialize"),
		Arguments: dap.InitializeRequestArguments{ClientID: "editor", PathFormat: "path"},
	}))

	reader := bufio.NewReader(editorIn)
	msg, err := dap.ReadProtocolMessage(reader)
	require.NoError(t, err)
	resp, ok := msg.(*dap.InitializeResponse)
	require.True(t, ok)
	assert.True(t, resp.Success)
	assert.True(t, resp.Body.SupportsConfigurationDoneRequest)

	msg, err = dap.ReadProtocolMessage(reader)
	require.NoError(t, err)
	_, ok = msg.(*dap.InitializedEvent)
	assert.True(t, ok)

	// the editor going away tears the session down
	require.NoError(t, editorOut.Close())
	msg, err = dap.ReadProtocolMessage(reader)
	require.NoError(t, err)
	_, ok = msg.(*dap.TerminatedEvent)
	assert.True(t, ok)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeConn did not return after the editor hung up")
	}
	assert.Empty(t, srv.ListSessions())
}
