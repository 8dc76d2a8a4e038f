package http

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatapp "github.com/nutrisnap/v2/internal/application/chat"
	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/chat"
	apperrors "github.com/nutrisnap/v2/pkg/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Auth terminates upstream; the facade does not gate origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsFrame is the single frame shape in both directions.
type wsFrame struct {
	Type        string    `json:"type"`
	ThreadID    uuid.UUID `json:"thread_id,omitempty"`
	Role        string    `json:"role,omitempty"`
	Content     string    `json:"content,omitempty"`
	Code        string    `json:"code,omitempty"`
	Interrupted bool      `json:"interrupted,omitempty"`
}

// wsSink serializes writes to one websocket connection. Stream deltas
// and hub broadcasts share it, so every write goes through the mutex.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Deliver(msg chat.Message) error {
	return s.write(wsFrame{Type: "message", Role: string(msg.Role), Content: msg.Content})
}

func (s *wsSink) write(frame wsFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(frame)
}

type chatSocket struct {
	bus    *bus.Bus
	hub    *chatapp.ConnectionHub
	logger *zap.Logger
}

// serve upgrades the connection and runs the message loop. An optional
// thread_id query parameter attaches the socket to an existing thread;
// otherwise the first message creates one and the socket follows it.
func (ws *chatSocket) serve(c *gin.Context) {
	userID, ok := withActor(c)
	if !ok {
		return
	}

	var threadID uuid.UUID
	if raw := c.Query("thread_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "thread_id must be a uuid")
			return
		}
		threadID = id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ws.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	if threadID != uuid.Nil {
		ws.hub.Register(userID, threadID, sink)
		defer func() { ws.hub.Unregister(userID, threadID, sink) }()
	}

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type != "send" || frame.Content == "" {
			_ = sink.write(wsFrame{Type: "error", Code: "INVALID_INPUT", Content: "expected a send frame with content"})
			continue
		}

		result, err := ws.bus.Send(c.Request.Context(), chatapp.StreamMessageCommand{
			UserID:   userID,
			ThreadID: threadID,
			Content:  frame.Content,
			Sink:     sink,
		})
		if err != nil {
			_ = sink.write(wsFrame{Type: "error", Code: string(apperrors.GetCode(err)), Content: err.Error()})
			continue
		}

		mr, ok := result.(chatapp.MessageResult)
		if !ok {
			continue
		}
		if threadID == uuid.Nil {
			// First message created the thread; follow it from now on.
			threadID = mr.ThreadID
			ws.hub.Register(userID, threadID, sink)
			defer func() { ws.hub.Unregister(userID, threadID, sink) }()
		}
		_ = sink.write(wsFrame{Type: "done", ThreadID: mr.ThreadID, Interrupted: mr.Interrupted})
	}
}
