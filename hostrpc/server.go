// Package hostrpc is the websocket JSON-RPC channel between shade and the
// editor frontend. The frontend mirrors its view and document state in,
// and shade drives decorations and fold/unfold commands back out. The
// server is also the host.Editor implementation the core acts through.
package hostrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/odvcencio/shade/fold"
	"github.com/odvcencio/shade/host"
	"github.com/odvcencio/shade/region"
	"github.com/odvcencio/shade/visibility"
)

// Handlers are the orchestration entry points the app wires in. Mutating
// messages are dispatched sequentially per connection, which preserves the
// per-document arrival order the core depends on; folding/ranges requests
// are pure reads and run concurrently.
type Handlers struct {
	ViewOpened    func(ctx context.Context, v host.View, text string)
	ViewClosed    func(ctx context.Context, v host.View)
	ViewActivated func(ctx context.Context)
	TextChanged   func(ctx context.Context, path, text string)
	Toggle        func(ctx context.Context) visibility.Mode
	FoldingRanges func(ctx context.Context, path string) ([]fold.Block, error)
	Shutdown      func(ctx context.Context)
}

type rpcRequest struct {
	ID     any             `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcNotification struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type viewParams struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Language   string `json:"language"`
	FileBacked bool   `json:"fileBacked"`
	Text       string `json:"text,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Server accepts one editor frontend at a time and tracks its view set.
type Server struct {
	logger   *log.Logger
	upgrader websocket.Upgrader
	handlers Handlers

	mu        sync.Mutex
	conn      *wsConn
	views     map[string]host.View
	viewOrder []string
	active    string
	styles    map[host.StyleID]float64
	nextStyle host.StyleID
}

// NewServer creates a server; SetHandlers must be called before serving.
func NewServer(logger *log.Logger) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		views:  make(map[string]host.View),
		styles: make(map[host.StyleID]float64),
	}
}

// SetHandlers installs the orchestration callbacks.
func (s *Server) SetHandlers(h Handlers) {
	s.mu.Lock()
	s.handlers = h
	s.mu.Unlock()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/ws" {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	client := &wsConn{conn: conn}

	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		s.logger.Warn("rejecting second editor connection")
		_ = conn.Close()
		return
	}
	s.conn = client
	s.mu.Unlock()
	s.logger.Info("editor connected", "remote", conn.RemoteAddr())

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		if s.conn == client {
			s.conn = nil
			// The view set belongs to the editor session; region data
			// survives in the cache for reopen.
			s.views = make(map[string]host.View)
			s.viewOrder = nil
			s.active = ""
		}
		s.mu.Unlock()
		s.logger.Info("editor disconnected")
	}()

	// Mutating messages are applied in arrival order on a single worker.
	// Folding queries are answered off the read loop: a toggle in flight
	// blocks the worker while it waits for the frontend to re-query, and
	// that re-query has to get through.
	ctx := r.Context()
	queue := make(chan rpcRequest, 16)
	defer close(queue)
	go func() {
		for req := range queue {
			s.dispatch(ctx, client, req)
		}
	}()

	for {
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Method == "folding/ranges" {
			go s.dispatch(ctx, client, req)
			continue
		}
		queue <- req
	}
}

func (s *Server) dispatch(ctx context.Context, client *wsConn, req rpcRequest) {
	result, err := s.handle(ctx, req)
	if req.ID == nil {
		if err != nil {
			s.logger.Debug("notification failed", "method", req.Method, "err", err)
		}
		return
	}
	resp := rpcResponse{ID: req.ID, Result: result}
	if err != nil {
		resp.Result = nil
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
	}
	if err := client.writeJSON(resp); err != nil {
		s.logger.Debug("response write failed", "method", req.Method, "err", err)
	}
}

func (s *Server) handle(ctx context.Context, req rpcRequest) (any, error) {
	s.mu.Lock()
	h := s.handlers
	s.mu.Unlock()

	switch req.Method {
	case "view/opened":
		var p viewParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		v := host.View{ID: p.ID, Path: p.Path, Language: p.Language, FileBacked: p.FileBacked}
		s.mu.Lock()
		if _, known := s.views[v.ID]; !known {
			s.viewOrder = append(s.viewOrder, v.ID)
		}
		s.views[v.ID] = v
		s.mu.Unlock()
		if h.ViewOpened != nil {
			h.ViewOpened(ctx, v, p.Text)
		}
		return "ok", nil

	case "view/closed":
		var p viewParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		s.mu.Lock()
		v, known := s.views[p.ID]
		delete(s.views, p.ID)
		order := s.viewOrder[:0]
		for _, id := range s.viewOrder {
			if id != p.ID {
				order = append(order, id)
			}
		}
		s.viewOrder = order
		if s.active == p.ID {
			s.active = ""
		}
		s.mu.Unlock()
		if known && h.ViewClosed != nil {
			h.ViewClosed(ctx, v)
		}
		return "ok", nil

	case "view/activated":
		var p viewParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.active = p.ID
		s.mu.Unlock()
		if h.ViewActivated != nil {
			h.ViewActivated(ctx)
		}
		return "ok", nil

	case "document/changed":
		var p struct {
			Path string `json:"path"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		if h.TextChanged != nil {
			h.TextChanged(ctx, p.Path, p.Text)
		}
		return "ok", nil

	case "visibility/toggle":
		if h.Toggle == nil {
			return nil, fmt.Errorf("toggle not wired")
		}
		return map[string]string{"mode": h.Toggle(ctx).String()}, nil

	case "folding/ranges":
		var p struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, err
		}
		if h.FoldingRanges == nil {
			return []fold.Block{}, nil
		}
		blocks, err := h.FoldingRanges(ctx, p.Path)
		if err != nil {
			return nil, err
		}
		if blocks == nil {
			blocks = []fold.Block{}
		}
		return blocks, nil

	case "shutdown":
		if h.Shutdown != nil {
			h.Shutdown(ctx)
		}
		return "ok", nil

	default:
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}
}

func (s *Server) notify(method string, params any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no editor connected")
	}
	return conn.writeJSON(rpcNotification{Method: method, Params: params})
}

// NotifyFoldingChanged relays the provider's ranges-changed signal; the
// frontend answers by re-querying folding/ranges.
func (s *Server) NotifyFoldingChanged() {
	if err := s.notify("folding/changed", nil); err != nil {
		s.logger.Debug("folding/changed not delivered", "err", err)
	}
}

// ActiveView implements host.Editor.
func (s *Server) ActiveView() (host.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[s.active]
	return v, ok
}

// VisibleViews implements host.Editor; views are returned in open order.
func (s *Server) VisibleViews() []host.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]host.View, 0, len(s.viewOrder))
	for _, id := range s.viewOrder {
		out = append(out, s.views[id])
	}
	return out
}

// CreateStyle implements host.Editor.
func (s *Server) CreateStyle(opacity float64) (host.StyleID, error) {
	s.mu.Lock()
	s.nextStyle++
	id := s.nextStyle
	s.styles[id] = opacity
	s.mu.Unlock()
	// Best-effort: a frontend connecting later learns the opacity from
	// the next decoration/apply.
	_ = s.notify("decoration/styleCreated", map[string]any{"style": id, "opacity": opacity})
	return id, nil
}

// DisposeStyle implements host.Editor.
func (s *Server) DisposeStyle(id host.StyleID) error {
	s.mu.Lock()
	_, ok := s.styles[id]
	delete(s.styles, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown style %d", id)
	}
	return s.notify("decoration/styleDisposed", map[string]any{"style": id})
}

// SetHiddenRanges implements host.Editor.
func (s *Server) SetHiddenRanges(v host.View, style host.StyleID, ranges []region.Region) error {
	s.mu.Lock()
	opacity, ok := s.styles[style]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown style %d", style)
	}
	if ranges == nil {
		ranges = []region.Region{}
	}
	return s.notify("decoration/apply", map[string]any{
		"view":    v.ID,
		"style":   style,
		"opacity": opacity,
		"ranges":  ranges,
	})
}

// Fold implements host.Editor: collapse one level at each start line.
func (s *Server) Fold(v host.View, startLines []int) error {
	return s.notify("editor/fold", map[string]any{"view": v.ID, "lines": startLines})
}

// Unfold implements host.Editor.
func (s *Server) Unfold(v host.View, startLines []int) error {
	return s.notify("editor/unfold", map[string]any{"view": v.ID, "lines": startLines})
}
