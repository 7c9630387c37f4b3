package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/tandem/internal/api"
	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/server/auth"
	"github.com/dmitrijs2005/tandem/internal/server/models"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// StreamError is the final frame sent when a join attempt fails.
type StreamError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get(common.AccessTokenHeaderName)
}

// handleMatchStream authenticates, upgrades, reads one JoinRequest and then
// re-runs Join on every poll tick, pushing each answer until the actor is
// matched, the join fails or the client goes away. Closing the stream while
// waiting withdraws the actor from the queue.
func (s *HTTPServer) handleMatchStream(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	actor, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req api.JoinRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.logger.Debug(r.Context(), "stream closed before join request", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read side only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	matched := s.pushJoins(ctx, conn, actor, req)
	if !matched && ctx.Err() != nil {
		if _, err := s.joiner.CancelQueue(context.WithoutCancel(ctx), actor); err != nil {
			s.logger.Warn(ctx, "queue cancel after disconnect failed", "actor_id", actor.UserID, "error", err)
		}
	}
}

// pollJitterPercent keeps streams that opened together from re-joining in
// lockstep, where each would skip the other's locked queue row.
const pollJitterPercent = 20

func pollDelays(interval time.Duration) retry.Backoff {
	if interval <= 0 {
		interval = time.Second
	}
	return retry.WithJitterPercent(pollJitterPercent, retry.NewConstant(interval))
}

func (s *HTTPServer) pushJoins(ctx context.Context, conn *websocket.Conn, actor models.Actor, req api.JoinRequest) bool {
	delays := pollDelays(s.pollInterval)

	for {
		res, err := s.joiner.Join(ctx, actor, req.Goal, req.Score)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			msg := err.Error()
			reason := common.Reason(err)
			if reason == common.ReasonInternal {
				s.logger.Error(ctx, "stream join failed", "actor_id", actor.UserID, "error", err)
				msg = "internal error"
			}
			s.write(conn, StreamError{Error: msg, Reason: reason})
			s.close(conn, websocket.CloseInternalServerErr, reason)
			return false
		}

		if err := s.write(conn, api.JoinResponse{
			Matched:    res.Matched,
			Waiting:    res.Waiting,
			SessionID:  res.SessionID,
			Room:       res.Room,
			Credential: res.Credential,
			Partner:    res.Partner,
		}); err != nil {
			return false
		}
		if res.Matched {
			s.close(conn, websocket.CloseNormalClosure, "matched")
			return true
		}

		wait, _ := delays.Next()
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

func (s *HTTPServer) write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(v); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			s.logger.Debug(context.Background(), "stream write failed", "error", err)
		}
		return err
	}
	return nil
}

func (s *HTTPServer) close(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
