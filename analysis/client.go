// Package analysis talks to the external language-analysis service over a
// stdio JSON-RPC channel. The service computes which regions are inactive;
// shade only consumes its notifications. When no service is available the
// package degrades to a silent no-op and the rest of the system runs on
// directive scanning alone.
package analysis

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/odvcencio/shade/fold"
	"github.com/odvcencio/shade/region"
)

// inactiveRegionsMethod is the notification the service pushes whenever the
// inactive-region set of a document changes.
const inactiveRegionsMethod = "textDocument/inactiveRegions"

// Service is the surface the bridge consumes. Implementations: Client for
// a live service process, Noop when none is available.
type Service interface {
	// OnInactiveRegions registers the handler for region-change
	// notifications. Paths are local file paths, already URI-decoded.
	OnInactiveRegions(fn func(path string, regions region.Set))
	// Initialize performs the service handshake for the workspace root.
	Initialize(ctx context.Context, rootPath string) error
	// DidOpen tells the service a document is open.
	DidOpen(path, languageID, text string) error
	// DidChange tells the service a document changed.
	DidChange(path, text string) error
	// FoldingRanges asks the service for its own structural folding.
	FoldingRanges(ctx context.Context, path string) ([]fold.Block, error)
	// Close shuts the channel down.
	Close() error
}

// Connect starts the service process and returns a client for it. An empty
// command, or a command that fails to start, yields a Noop service: the
// subscription degrades silently per the error model.
func Connect(ctx context.Context, logger *log.Logger, command string, args ...string) Service {
	if command == "" {
		logger.Debug("no analysis service configured")
		return Noop{}
	}
	c, err := newClient(ctx, command, args...)
	if err != nil {
		logger.Warn("analysis service unavailable", "command", command, "err", err)
		return Noop{}
	}
	logger.Info("analysis service started", "command", command)
	return c
}

// Client is a stdio JSON-RPC connection to the analysis service.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu       sync.Mutex
	pending  map[int64]chan rpcResult
	onRegion func(path string, regions region.Set)
	versions map[string]int
	nextID   atomic.Int64
	closed   atomic.Bool
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

func newClient(ctx context.Context, command string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, err
	}

	c := &Client{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   bufio.NewReader(stdout),
		pending:  make(map[int64]chan rpcResult),
		versions: make(map[string]int),
	}
	go c.readLoop()
	return c, nil
}

// OnInactiveRegions registers the region-change handler.
func (c *Client) OnInactiveRegions(fn func(path string, regions region.Set)) {
	c.mu.Lock()
	c.onRegion = fn
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer c.failPending()
	for {
		msg, err := c.readMessage()
		if err != nil {
			return
		}

		if msg.ID != nil {
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			if ok {
				delete(c.pending, *msg.ID)
			}
			c.mu.Unlock()
			if ok {
				if msg.Error != nil {
					ch <- rpcResult{err: fmt.Errorf("rpc error %d: %s", msg.Error.Code, msg.Error.Message)}
				} else {
					ch <- rpcResult{result: msg.Result}
				}
				close(ch)
			}
			continue
		}

		if msg.Method == inactiveRegionsMethod {
			c.dispatchRegions(msg.Params)
		}
	}
}

func (c *Client) dispatchRegions(params json.RawMessage) {
	var payload inactiveRegionsParams
	if err := json.Unmarshal(params, &payload); err != nil {
		return
	}
	c.mu.Lock()
	fn := c.onRegion
	c.mu.Unlock()
	if fn == nil {
		return
	}
	regions := make(region.Set, 0, len(payload.Regions))
	for _, r := range payload.Regions {
		regions = append(regions, region.Region{Start: r.Start, End: r.End})
	}
	fn(URIToPath(payload.URI), regions)
}

func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = map[int64]chan rpcResult{}
}

func (c *Client) readMessage() (jsonrpcMessage, error) {
	var contentLength int
	for {
		line, err := c.stdout.ReadString('\n')
		if err != nil {
			return jsonrpcMessage{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(strings.ToLower(line), "content-length:"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				contentLength = n
			}
		}
	}
	if contentLength <= 0 {
		return jsonrpcMessage{}, fmt.Errorf("invalid content-length: %d", contentLength)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.stdout, body); err != nil {
		return jsonrpcMessage{}, err
	}
	var msg jsonrpcMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return jsonrpcMessage{}, err
	}
	return msg, nil
}

func (c *Client) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return fmt.Errorf("analysis client is closed")
	}
	if _, err := fmt.Fprintf(c.stdin, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	_, err = c.stdin.Write(data)
	return err
}

// Call sends a request and waits for its response.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan rpcResult, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, err
	}
	select {
	case res, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("analysis client closed")
		}
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a notification; no response is expected.
func (c *Client) Notify(method string, params any) error {
	return c.send(jsonrpcNotification{JSONRPC: "2.0", Method: method, Params: params})
}

// Initialize runs the initialize/initialized handshake.
func (c *Client) Initialize(ctx context.Context, rootPath string) error {
	_, err := c.Call(ctx, "initialize", map[string]any{
		"processId":    os.Getpid(),
		"rootUri":      FileURI(rootPath),
		"capabilities": map[string]any{},
	})
	if err != nil {
		return err
	}
	return c.Notify("initialized", map[string]any{})
}

// DidOpen announces an open document.
func (c *Client) DidOpen(path, languageID, text string) error {
	uri := FileURI(path)
	c.mu.Lock()
	c.versions[uri] = 1
	c.mu.Unlock()
	return c.Notify("textDocument/didOpen", map[string]any{
		"textDocument": map[string]any{
			"uri":        uri,
			"languageId": languageID,
			"version":    1,
			"text":       text,
		},
	})
}

// DidChange announces a full-text document change.
func (c *Client) DidChange(path, text string) error {
	uri := FileURI(path)
	c.mu.Lock()
	c.versions[uri]++
	version := c.versions[uri]
	c.mu.Unlock()
	return c.Notify("textDocument/didChange", map[string]any{
		"textDocument":   map[string]any{"uri": uri, "version": version},
		"contentChanges": []map[string]any{{"text": text}},
	})
}

// FoldingRanges requests the service's own folding ranges for a document.
func (c *Client) FoldingRanges(ctx context.Context, path string) ([]fold.Block, error) {
	raw, err := c.Call(ctx, "textDocument/foldingRange", map[string]any{
		"textDocument": map[string]any{"uri": FileURI(path)},
	})
	if err != nil {
		return nil, err
	}
	var results []foldingRangeResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, err
	}
	blocks := make([]fold.Block, 0, len(results))
	for _, r := range results {
		if r.EndLine <= r.StartLine {
			continue
		}
		blocks = append(blocks, fold.Block{StartLine: r.StartLine, EndLine: r.EndLine})
	}
	return blocks, nil
}

// Close shuts down the channel and the service process.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	_ = c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}

// Noop is the absent-service implementation: every operation succeeds and
// does nothing.
type Noop struct{}

func (Noop) OnInactiveRegions(func(string, region.Set))   {}
func (Noop) Initialize(context.Context, string) error     { return nil }
func (Noop) DidOpen(string, string, string) error         { return nil }
func (Noop) DidChange(string, string) error               { return nil }
func (Noop) FoldingRanges(context.Context, string) ([]fold.Block, error) {
	return nil, nil
}
func (Noop) Close() error { return nil }
