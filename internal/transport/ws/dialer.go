// Package ws opens the tutor stream channel over Gorilla WebSocket.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tutor-client/internal/app"
	"tutor-client/internal/domain"
)

// Dialer connects to {baseURL}/{sessionID}.
type Dialer struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewDialer(baseURL string, handshakeTimeout time.Duration) *Dialer {
	return &Dialer{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// Dial implements app.Dialer.
func (d *Dialer) Dial(ctx context.Context, sessionID string) (app.Stream, error) {
	u := d.baseURL + "/" + url.PathEscape(sessionID)
	conn, resp, err := d.dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return &Stream{conn: conn}, nil
}

// Stream wraps a websocket connection. Gorilla allows one concurrent writer,
// so writes and close are serialized.
type Stream struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  bool
}

// ReadMessage returns the next text or binary frame. A normal close from the
// server is reported as domain.ErrStreamClosed.
func (s *Stream) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, domain.ErrStreamClosed
		}
		return nil, err
	}
	return data, nil
}

func (s *Stream) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return domain.ErrNotConnected
	}
	return s.conn.WriteJSON(v)
}

// Close sends a close frame and releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return s.conn.Close()
}
