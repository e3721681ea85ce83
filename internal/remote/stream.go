package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"threadfu/internal/types"
)

// =============================================================================
// STREAM CONNECTION
// =============================================================================

// Stream is one incremental run feed over a WebSocket connection.
// Frames are classified and delivered on Events until the run ends or
// the stream is closed; the channel is closed afterwards.
type Stream struct {
	conn   *websocket.Conn
	events chan types.StreamEvent
	log    *zap.Logger

	closeOnce sync.Once
	writeMu   sync.Mutex
}

// OpenStream starts a run and returns its event feed. An empty threadID
// is valid on this path: the service creates the thread implicitly and
// announces the new id in the metadata frame.
func (c *Client) OpenStream(ctx context.Context, threadID string, input RunInput) (*Stream, error) {
	payload, err := runBody(c.cfg.AgentID, input)
	if err != nil {
		return nil, &TransportError{Op: "stream", Err: err}
	}

	path := "/runs/stream"
	if threadID != "" {
		path = "/threads/" + threadID + "/runs/stream"
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	var header map[string][]string
	if c.cfg.AuthHeader != "" && c.cfg.AuthToken != "" {
		header = map[string][]string{c.cfg.AuthHeader: {c.cfg.AuthToken}}
	}

	conn, _, err := dialer.DialContext(ctx, wsURL(c.cfg.BaseURL)+path, header)
	if err != nil {
		return nil, &TransportError{Op: "stream", Err: err}
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil, &TransportError{Op: "stream", Err: err}
	}

	s := &Stream{
		conn:   conn,
		events: make(chan types.StreamEvent, 16),
		log:    c.log,
	}
	go s.readLoop()
	return s, nil
}

// Events returns the inbound event channel. It is closed when the run
// ends, the connection drops, or the stream is closed.
func (s *Stream) Events() <-chan types.StreamEvent {
	return s.events
}

// Cancel requests cancellation of the in-flight run. The service stops
// emitting frames for it; delivery suppression on the client side is
// the transport adapter's job.
func (s *Stream) Cancel() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(map[string]string{"command": "cancel"})
}

// Close tears down the connection. Safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *Stream) readLoop() {
	defer close(s.events)
	defer s.Close()

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("stream read ended", zap.Error(err))
			}
			return
		}

		event, err := types.ClassifyStreamEvent(frame)
		if err != nil {
			s.log.Warn("unparseable stream frame", zap.Error(err))
			continue
		}

		s.events <- *event
		if event.EventType == types.StreamEventEnd {
			return
		}
	}
}

// wsURL converts the configured http(s) base URL to its ws(s) form.
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "wss://"), strings.HasPrefix(base, "ws://"):
		return base
	default:
		return fmt.Sprintf("ws://%s", base)
	}
}
