package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/linanwx/sharebridge/bus"
	"github.com/linanwx/sharebridge/logger"
)

// Page protocol operations.
const (
	opPing     = "ping"
	opPersist  = "persist"
	opNavigate = "navigate"
	opHello    = "hello"
	opVisible  = "visible"
)

// readyResult is what the page answers to a ping once its bridge script is
// installed: the typeof of the readiness flag.
const readyResult = "boolean"

var (
	// ErrNoPage is returned when no page is connected.
	ErrNoPage = errors.New("no destination page connected")

	errClientGone = errors.New("page disconnected")
)

// frame is one protocol message in either direction. Requests carry Op, replies
// echo the request ID with OK/Result/Error.
type frame struct {
	ID     string            `json:"id,omitempty"`
	Op     string            `json:"op,omitempty"`
	Key    string            `json:"key,omitempty"`
	Value  string            `json:"value,omitempty"`
	Path   string            `json:"path,omitempty"`
	Query  map[string]string `json:"query,omitempty"`
	OK     bool              `json:"ok,omitempty"`
	Result string            `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

type wsClient struct {
	id        string
	conn      *websocket.Conn
	mu        sync.Mutex
	pending   map[string]chan frame
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:      uuid.NewString(),
		conn:    conn,
		pending: make(map[string]chan frame),
		done:    make(chan struct{}),
	}
}

func (c *wsClient) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close(code, reason)
	})
}

func (c *wsClient) deliver(reply frame) {
	c.mu.Lock()
	ch, ok := c.pending[reply.ID]
	c.mu.Unlock()
	if !ok {
		logger.Debug("unsolicited page reply", "id", reply.ID)
		return
	}
	select {
	case ch <- reply:
	default:
	}
}

// Ready asks the connected page whether its bridge is installed. No page
// means not ready.
func (s *Server) Ready(ctx context.Context) (bool, error) {
	client := s.client()
	if client == nil {
		return false, nil
	}
	reply, err := s.call(ctx, client, frame{Op: opPing})
	if err != nil {
		if errors.Is(err, errClientGone) {
			return false, nil
		}
		return false, err
	}
	return reply.OK && reply.Result == readyResult, nil
}

// Persist stores key=value in the page's storage.
func (s *Server) Persist(ctx context.Context, key, value string) error {
	return s.command(ctx, frame{Op: opPersist, Key: key, Value: value})
}

// Navigate moves the page to path with the given query parameters.
func (s *Server) Navigate(ctx context.Context, path string, query map[string]string) error {
	return s.command(ctx, frame{Op: opNavigate, Path: path, Query: query})
}

func (s *Server) command(ctx context.Context, req frame) error {
	client := s.client()
	if client == nil {
		return ErrNoPage
	}
	reply, err := s.call(ctx, client, req)
	if err != nil {
		return err
	}
	if !reply.OK {
		return fmt.Errorf("page %s failed: %s", req.Op, reply.Error)
	}
	return nil
}

func (s *Server) call(ctx context.Context, client *wsClient, req frame) (frame, error) {
	req.ID = strconv.FormatUint(s.seq.Add(1), 10)
	ch := make(chan frame, 1)

	client.mu.Lock()
	client.pending[req.ID] = ch
	client.mu.Unlock()
	defer func() {
		client.mu.Lock()
		delete(client.pending, req.ID)
		client.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, client.conn, req); err != nil {
		select {
		case <-client.done:
			return frame{}, errClientGone
		default:
		}
		return frame{}, fmt.Errorf("websocket send failed: %w", err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-client.done:
		return frame{}, errClientGone
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

func (s *Server) client() *wsClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Server) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(rw, r, nil)
	if err != nil {
		return
	}

	client := newClient(conn)
	s.bindClient(client)

	s.wg.Add(1)
	defer s.wg.Done()
	defer func() {
		s.unbindClient(client)
		client.close(websocket.StatusNormalClosure, "")
		logger.Info("page disconnected", "client", client.id)
		s.opts.Bus.Emit(bus.EventSurfaceDisconnected, eventSource, nil)
	}()

	logger.Info("page connected", "client", client.id, "remote", r.RemoteAddr)
	s.opts.Bus.Emit(bus.EventSurfaceConnected, eventSource, nil)
	if s.opts.OnConnect != nil {
		s.opts.OnConnect()
	}

	for {
		var msg frame
		if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 {
				logger.Debug("page read ended", "client", client.id, "err", err)
			}
			return
		}

		switch {
		case msg.Op == "" && msg.ID != "":
			client.deliver(msg)
		case msg.Op == opHello:
			logger.Debug("page hello", "client", client.id, "path", msg.Path)
		case msg.Op == opVisible:
			if s.opts.OnVisible != nil {
				s.opts.OnVisible()
			}
		default:
			logger.Debug("unsupported page message", "op", msg.Op)
		}
	}
}

// bindClient makes client the current page; the previous one is closed.
func (s *Server) bindClient(client *wsClient) {
	s.mu.Lock()
	old := s.current
	s.current = client
	s.mu.Unlock()

	if old != nil && old != client {
		old.close(websocket.StatusNormalClosure, "replaced")
	}
}

func (s *Server) unbindClient(client *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == client {
		s.current = nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("write response failed", "err", err)
	}
}
