package syncd

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/orchestrator"
)

const streamWriteTimeout = 5 * time.Second

// Stream message types.
const (
	MessageStatus = "status"
	MessageResult = "result"
)

// StreamMessage is a frame of the status stream. Every frame carries a fresh
// status snapshot; result frames also carry the run that triggered them.
type StreamMessage struct {
	Type      string               `json:"type"`
	Timestamp time.Time            `json:"timestamp"`
	Status    *orchestrator.Status `json:"status,omitempty"`
	Result    *orchestrator.Result `json:"result,omitempty"`
}

type streamer struct {
	ctl    Controller
	logger *zap.Logger
}

// ServeHTTP upgrades the request and pushes a status frame on connect and a
// result frame after every finished sync run, until the client goes away.
func (s *streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.CloseNow() }()

	results, unsubscribe := s.ctl.Subscribe()
	defer unsubscribe()

	// client frames are ignored; ctx ends when the client closes
	ctx := conn.CloseRead(r.Context())

	if err := s.send(ctx, conn, MessageStatus, nil); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := s.send(ctx, conn, MessageResult, res); err != nil {
				s.logger.Debug("Status stream closed", zap.Error(err))
				return
			}
		}
	}
}

func (s *streamer) send(ctx context.Context, conn *websocket.Conn, kind string, res *orchestrator.Result) error {
	st, err := s.ctl.Status(ctx)
	if err != nil {
		s.logger.Error("Failed to read sync status", zap.Error(err))
		return err
	}
	data, err := json.Marshal(&StreamMessage{
		Type:      kind,
		Timestamp: time.Now().UTC(),
		Status:    st,
		Result:    res,
	})
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
