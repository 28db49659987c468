package hostrpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/shade/fold"
	"github.com/odvcencio/shade/host"
	"github.com/odvcencio/shade/visibility"
)

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *Server) *testClient {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) call(method string, params any) rpcResponse {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{
		"id": 1, "method": method, "params": params,
	}))
	for {
		var raw json.RawMessage
		require.NoError(c.t, c.conn.ReadJSON(&raw))
		var resp rpcResponse
		require.NoError(c.t, json.Unmarshal(raw, &resp))
		if resp.ID != nil {
			return resp
		}
		// Skip interleaved notifications.
	}
}

func (c *testClient) notification() map[string]json.RawMessage {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]json.RawMessage
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	return msg
}

func newTestServer() *Server {
	return NewServer(log.New(io.Discard))
}

func TestViewLifecycle(t *testing.T) {
	srv := newTestServer()
	opened := make(chan host.View, 1)
	srv.SetHandlers(Handlers{
		ViewOpened: func(_ context.Context, v host.View, text string) {
			opened <- v
		},
	})
	c := dial(t, srv)

	resp := c.call("view/opened", viewParams{
		ID: "v1", Path: "/tmp/a.c", Language: "c", FileBacked: true, Text: "#if 1\n#endif",
	})
	require.Nil(t, resp.Error)

	select {
	case v := <-opened:
		require.Equal(t, "v1", v.ID)
	case <-time.After(time.Second):
		t.Fatal("ViewOpened handler not invoked")
	}

	views := srv.VisibleViews()
	require.Len(t, views, 1)
	require.Equal(t, "/tmp/a.c", views[0].Path)

	resp = c.call("view/activated", viewParams{ID: "v1"})
	require.Nil(t, resp.Error)
	active, ok := srv.ActiveView()
	require.True(t, ok)
	require.Equal(t, "v1", active.ID)

	resp = c.call("view/closed", viewParams{ID: "v1"})
	require.Nil(t, resp.Error)
	require.Empty(t, srv.VisibleViews())
	_, ok = srv.ActiveView()
	require.False(t, ok)
}

func TestToggleRoundTrip(t *testing.T) {
	srv := newTestServer()
	srv.SetHandlers(Handlers{
		Toggle: func(context.Context) visibility.Mode { return visibility.Hidden },
	})
	c := dial(t, srv)

	resp := c.call("visibility/toggle", nil)
	require.Nil(t, resp.Error)
	result, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.JSONEq(t, `{"mode":"hidden"}`, string(result))
}

func TestFoldingRangesRoundTrip(t *testing.T) {
	srv := newTestServer()
	srv.SetHandlers(Handlers{
		FoldingRanges: func(_ context.Context, path string) ([]fold.Block, error) {
			require.Equal(t, "/tmp/a.c", path)
			return []fold.Block{{StartLine: 2, EndLine: 4}}, nil
		},
	})
	c := dial(t, srv)

	resp := c.call("folding/ranges", map[string]string{"path": "/tmp/a.c"})
	require.Nil(t, resp.Error)
	result, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.JSONEq(t, `[{"startLine":2,"endLine":4}]`, string(result))
}

func TestDecorationAndFoldCommands(t *testing.T) {
	srv := newTestServer()
	srv.SetHandlers(Handlers{})
	c := dial(t, srv)

	resp := c.call("view/opened", viewParams{ID: "v1", Path: "/tmp/a.c", Language: "c", FileBacked: true})
	require.Nil(t, resp.Error)
	v := srv.VisibleViews()[0]

	style, err := srv.CreateStyle(0.4)
	require.NoError(t, err)
	msg := c.notification()
	require.JSONEq(t, `"decoration/styleCreated"`, string(msg["method"]))

	require.NoError(t, srv.SetHiddenRanges(v, style, nil))
	msg = c.notification()
	require.JSONEq(t, `"decoration/apply"`, string(msg["method"]))

	require.NoError(t, srv.Fold(v, []int{2}))
	msg = c.notification()
	require.JSONEq(t, `"editor/fold"`, string(msg["method"]))

	require.NoError(t, srv.Unfold(v, []int{2}))
	msg = c.notification()
	require.JSONEq(t, `"editor/unfold"`, string(msg["method"]))

	srv.NotifyFoldingChanged()
	msg = c.notification()
	require.JSONEq(t, `"folding/changed"`, string(msg["method"]))
}

func TestCommandsWithoutEditorFail(t *testing.T) {
	srv := newTestServer()
	style, err := srv.CreateStyle(0.4) // best-effort, succeeds locally
	require.NoError(t, err)
	err = srv.SetHiddenRanges(host.View{ID: "v1"}, style, nil)
	require.Error(t, err)
	require.Error(t, srv.Fold(host.View{ID: "v1"}, []int{1}))
}

func TestUnknownStyleRejected(t *testing.T) {
	srv := newTestServer()
	err := srv.SetHiddenRanges(host.View{ID: "v1"}, 42, nil)
	require.Error(t, err)
}

func TestFoldingQueryServedDuringToggle(t *testing.T) {
	srv := newTestServer()
	queried := make(chan struct{})
	served := make(chan bool, 1)
	srv.SetHandlers(Handlers{
		// The toggle waits for the frontend's ranges re-query, as a real
		// toggle does while awaiting consumption of the changed signal.
		Toggle: func(ctx context.Context) visibility.Mode {
			select {
			case <-queried:
				served <- true
			case <-time.After(3 * time.Second):
				served <- false
			}
			return visibility.HiddenFolded
		},
		FoldingRanges: func(ctx context.Context, path string) ([]fold.Block, error) {
			close(queried)
			return []fold.Block{{StartLine: 2, EndLine: 4}}, nil
		},
	})
	c := dial(t, srv)

	require.NoError(t, c.conn.WriteJSON(map[string]any{
		"id": 1, "method": "visibility/toggle",
	}))
	require.NoError(t, c.conn.WriteJSON(map[string]any{
		"id": 2, "method": "folding/ranges", "params": map[string]string{"path": "/tmp/a.c"},
	}))

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	answered := map[float64]bool{}
	for len(answered) < 2 {
		var raw json.RawMessage
		require.NoError(t, c.conn.ReadJSON(&raw))
		var resp rpcResponse
		require.NoError(t, json.Unmarshal(raw, &resp))
		if resp.ID == nil {
			continue
		}
		require.Nil(t, resp.Error)
		answered[resp.ID.(float64)] = true
	}
	require.True(t, <-served, "ranges query not served while the toggle was in flight")
}

func TestShutdownInvokesHandler(t *testing.T) {
	srv := newTestServer()
	done := make(chan struct{}, 1)
	srv.SetHandlers(Handlers{
		Shutdown: func(context.Context) { done <- struct{}{} },
	})
	c := dial(t, srv)

	resp := c.call("shutdown", nil)
	require.Nil(t, resp.Error)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown handler not invoked")
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := newTestServer()
	srv.SetHandlers(Handlers{})
	c := dial(t, srv)
	resp := c.call("nope/nope", nil)
	require.NotNil(t, resp.Error)
}
