package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tandem/internal/api"
	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/logging"
	"github.com/dmitrijs2005/tandem/internal/server/auth"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/dmitrijs2005/tandem/internal/server/services"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "secret"

type fakeJoiner struct {
	mu        sync.Mutex
	waitFor   int
	calls     int
	err       error
	cancelled chan models.Actor
	lastGoal  string
}

func newFakeJoiner(waitFor int) *fakeJoiner {
	return &fakeJoiner{waitFor: waitFor, cancelled: make(chan models.Actor, 1)}
}

func (f *fakeJoiner) Join(_ context.Context, actor models.Actor, goal string, _ int) (*services.JoinResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastGoal = goal
	if f.err != nil {
		return nil, f.err
	}
	if f.waitFor >= 0 && f.calls > f.waitFor {
		return &services.JoinResult{Matched: true, SessionID: "s-1", Room: "room", Credential: "cred", Partner: "bob"}, nil
	}
	return &services.JoinResult{Waiting: true}, nil
}

func (f *fakeJoiner) CancelQueue(_ context.Context, actor models.Actor) (bool, error) {
	f.cancelled <- actor
	return true, nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func newTestServer(t *testing.T, j Joiner, db Pinger) *httptest.Server {
	t.Helper()
	s := NewHTTPServer("", logging.NewJSONLogger(io.Discard, "debug"), j, db, secret, 10*time.Millisecond)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/match/stream"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := auth.GenerateToken("alice", models.RoleLearner, []byte(secret), time.Hour)
	require.NoError(t, err)
	return tok
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, newFakeJoiner(0), fakePinger{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := newTestServer(t, newFakeJoiner(0), fakePinger{err: errors.New("conn refused")})
	resp2, err := http.Get(down.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestMatchStream_RejectsMissingToken(t *testing.T) {
	srv := newTestServer(t, newFakeJoiner(0), nil)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/match/stream"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMatchStream_PushesUntilMatched(t *testing.T) {
	j := newFakeJoiner(2)
	conn := dial(t, newTestServer(t, j, nil), token(t))
	require.NoError(t, conn.WriteJSON(api.JoinRequest{Goal: "travel", Score: 1}))

	var frames []api.JoinResponse
	for {
		var f api.JoinResponse
		if err := conn.ReadJSON(&f); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected close: %v", err)
			break
		}
		frames = append(frames, f)
	}

	require.Len(t, frames, 3)
	assert.True(t, frames[0].Waiting)
	assert.True(t, frames[1].Waiting)
	assert.True(t, frames[2].Matched)
	assert.Equal(t, "bob", frames[2].Partner)
	assert.Equal(t, "travel", j.lastGoal)
}

func TestMatchStream_ErrorFrameCarriesReason(t *testing.T) {
	j := newFakeJoiner(0)
	j.err = common.ErrValidation
	conn := dial(t, newTestServer(t, j, nil), token(t))
	require.NoError(t, conn.WriteJSON(api.JoinRequest{Score: -1}))

	var frame StreamError
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, common.ReasonValidation, frame.Reason)
}

func TestMatchStream_DisconnectCancelsQueue(t *testing.T) {
	j := newFakeJoiner(-1)
	conn := dial(t, newTestServer(t, j, nil), token(t))
	require.NoError(t, conn.WriteJSON(api.JoinRequest{}))

	var f api.JoinResponse
	require.NoError(t, conn.ReadJSON(&f))
	require.True(t, f.Waiting)
	require.NoError(t, conn.Close())

	select {
	case a := <-j.cancelled:
		assert.Equal(t, "alice", a.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("queue was not cancelled after disconnect")
	}
}

func TestPollDelays_Jittered(t *testing.T) {
	delays := pollDelays(100 * time.Millisecond)

	seen := map[time.Duration]bool{}
	for i := 0; i < 200; i++ {
		d, _ := delays.Next()
		require.GreaterOrEqual(t, d, 80*time.Millisecond)
		require.LessOrEqual(t, d, 120*time.Millisecond)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1)

	d, _ := pollDelays(0).Next()
	assert.Positive(t, d)
}
