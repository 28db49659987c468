package analysis

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/odvcencio/shade/region"
)

// Wire types for the analysis-service channel. The region-change message
// shape is owned by the service, not by shade; these mirror it.

// Range is a span between two zero-based positions.
type Range struct {
	Start region.Position `json:"start"`
	End   region.Position `json:"end"`
}

// inactiveRegionsParams is the payload of the inactive-regions
// notification pushed by the service.
type inactiveRegionsParams struct {
	URI     string  `json:"uri"`
	Regions []Range `json:"regions"`
}

// foldingRangeResult is one folding range returned by the service.
type foldingRangeResult struct {
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Kind      string `json:"kind,omitempty"`
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FileURI converts a file path to a file:// URI.
func FileURI(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := &url.URL{Scheme: "file", Path: p}
	return u.String()
}

// URIToPath converts a file:// URI back to a local path. Non-file URIs are
// returned unchanged.
func URIToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}
