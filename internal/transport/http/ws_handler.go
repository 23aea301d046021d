package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizboard-service/internal/app"
	"quizboard-service/internal/domain"
)

const wsWriteWait = 10 * time.Second

// WSHandler streams the all-users scoreboard: a snapshot on connect, then one
// row per recorded attempt.
type WSHandler struct {
	scoring  *app.ScoringService
	feed     *app.ReportFeed
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(scoring *app.ScoringService, feed *app.ReportFeed, log *zap.Logger) *WSHandler {
	return &WSHandler{
		scoring: scoring,
		feed:    feed,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type reportKey struct {
	quizID int64
	userID int64
}

// snapshotFilter drops feed rows already covered by the snapshot. A user has
// at most one attempt per quiz, so a pair seen in the snapshot never changes.
type snapshotFilter map[reportKey]struct{}

func newSnapshotFilter(snapshot []domain.UserReport) snapshotFilter {
	f := make(snapshotFilter, len(snapshot))
	for _, r := range snapshot {
		f[reportKey{quizID: r.QuizID, userID: r.UserID}] = struct{}{}
	}
	return f
}

func (f snapshotFilter) fresh(r domain.UserReport) bool {
	_, seen := f[reportKey{quizID: r.QuizID, userID: r.UserID}]
	return !seen
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		http.Error(w, "report feed disabled", http.StatusServiceUnavailable)
		return
	}

	// Subscribe before the snapshot so no attempt recorded in between is lost;
	// rows the snapshot already holds are filtered out below.
	updates, cancel := h.feed.Subscribe()
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	snapshot, err := h.scoring.AllUsersReports(r.Context())
	if err != nil {
		h.log.Error("ws snapshot", zap.Error(err))
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "snapshot unavailable"}})
		return
	}

	seen := newSnapshotFilter(snapshot)
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	send <- outboundMessage[any]{Type: "snapshot", Payload: snapshot}

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case report, ok := <-updates:
				if !ok {
					return
				}
				if !seen.fresh(report) {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "report", Payload: report}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// The feed is one way; reading only detects the client going away.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
