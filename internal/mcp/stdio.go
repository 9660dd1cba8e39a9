package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

// ErrSessionClosed is returned for calls on a session whose server went away.
var ErrSessionClosed = errors.New("MCP session closed")

// notifyFunc receives server-initiated notifications.
type notifyFunc func(server, method string, params json.RawMessage)

// ---------------------------------------------------------------------------
// JSON-RPC plumbing
// ---------------------------------------------------------------------------

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// rpcMessage is any line on the wire: request, response or notification.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcSession multiplexes newline-delimited JSON-RPC over a reader/writer
// pair. A single reader goroutine routes responses to waiting callers by id
// and hands notifications to onNotify.
type rpcSession struct {
	server   string
	w        io.Writer
	onNotify notifyFunc

	wmu    sync.Mutex
	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan rpcMessage
	closed  bool
	done    chan struct{}
}

func newRPCSession(server string, r io.Reader, w io.Writer, onNotify notifyFunc) *rpcSession {
	s := &rpcSession{
		server:   server,
		w:        w,
		onNotify: onNotify,
		pending:  make(map[int64]chan rpcMessage),
		done:     make(chan struct{}),
	}
	go s.readLoop(r)
	return s
}

func (s *rpcSession) readLoop(r io.Reader) {
	defer s.shutdown()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var msg rpcMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue // skip non-JSON lines (server log output)
		}

		switch {
		case msg.Method != "" && len(msg.ID) == 0:
			if s.onNotify != nil {
				s.onNotify(s.server, msg.Method, msg.Params)
			}
		case msg.Method != "":
			s.answerServerRequest(msg)
		default:
			var id int64
			if err := json.Unmarshal(msg.ID, &id); err != nil {
				continue
			}
			s.mu.Lock()
			ch, ok := s.pending[id]
			delete(s.pending, id)
			s.mu.Unlock()
			if ok {
				ch <- msg
			}
		}
	}
	if err := sc.Err(); err != nil {
		slog.Warn("MCP stdout read failed", "server", s.server, "err", err)
	}
}

// answerServerRequest replies to requests the server sends us. Only ping is
// supported; anything else gets "method not found".
func (s *rpcSession) answerServerRequest(req rpcMessage) {
	resp := rpcMessage{JSONRPC: "2.0", ID: req.ID}
	if req.Method == "ping" {
		resp.Result = json.RawMessage(`{}`)
	} else {
		resp.Error = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}
	if err := s.write(resp); err != nil {
		slog.Debug("MCP reply failed", "server", s.server, "method", req.Method, "err", err)
	}
}

func (s *rpcSession) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	close(s.done)
}

func (s *rpcSession) write(msg rpcMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%s\n", data); err != nil {
		return fmt.Errorf("write to MCP stdin: %w", err)
	}
	return nil
}

func (s *rpcSession) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := s.nextID.Add(1)
	req := rpcMessage{JSONRPC: "2.0", ID: json.RawMessage(fmt.Sprintf("%d", id)), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		req.Params = raw
	}

	ch := make(chan rpcMessage, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.pending[id] = ch
	s.mu.Unlock()

	if err := s.write(req); err != nil {
		s.forget(id)
		return nil, err
	}

	select {
	case <-ctx.Done():
		s.forget(id)
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrSessionClosed
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

func (s *rpcSession) notify(method string, params any) error {
	msg := rpcMessage{JSONRPC: "2.0", Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		msg.Params = raw
	}
	return s.write(msg)
}

func (s *rpcSession) forget(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// ---------------------------------------------------------------------------
// MCP methods over a session
// ---------------------------------------------------------------------------

func (s *rpcSession) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": clientName, "version": clientVersion},
	}
	if _, err := s.call(ctx, "initialize", params); err != nil {
		return err
	}
	return s.notify("notifications/initialized", nil)
}

func (s *rpcSession) listTools(ctx context.Context) ([]ToolInfo, error) {
	var out []ToolInfo
	cursor := ""
	for {
		var params any
		if cursor != "" {
			params = map[string]any{"cursor": cursor}
		}
		raw, err := s.call(ctx, "tools/list", params)
		if err != nil {
			return nil, err
		}
		var page struct {
			Tools []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
				InputSchema any    `json:"inputSchema"`
			} `json:"tools"`
			NextCursor string `json:"nextCursor"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decode tools/list: %w", err)
		}
		for _, t := range page.Tools {
			if t.Name == "" {
				continue
			}
			out = append(out, ToolInfo{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: normalizeSchema(t.InputSchema),
			})
		}
		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (s *rpcSession) callTool(ctx context.Context, name string, args map[string]any) (schema.StructuredResult, error) {
	raw, err := s.call(ctx, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return schema.StructuredResult{}, err
	}

	var result struct {
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			Resource *struct {
				URI  string `json:"uri"`
				Text string `json:"text"`
			} `json:"resource"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return schema.StructuredResult{}, fmt.Errorf("decode tools/call: %w", err)
	}

	out := schema.StructuredResult{Content: make([]schema.ContentItem, 0, len(result.Content))}
	for _, c := range result.Content {
		item := schema.ContentItem{Type: c.Type, Text: c.Text}
		if c.Resource != nil && item.Text == "" {
			item.Text = c.Resource.Text
		}
		out.Content = append(out.Content, item)
	}
	if result.IsError {
		return out, toolError(out)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// stdioClient: a server running as a subprocess
// ---------------------------------------------------------------------------

type stdioClient struct {
	name   string
	cfg    ServerConfig
	notify notifyFunc

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	session *rpcSession
}

func newStdioClient(name string, cfg ServerConfig, notify notifyFunc) *stdioClient {
	return &stdioClient{name: name, cfg: cfg, notify: notify}
}

func (c *stdioClient) Name() string { return c.name }

// Connect starts the MCP server subprocess and initializes the session.
func (c *stdioClient) Connect(ctx context.Context) error {
	// Not CommandContext: the process must outlive the connect deadline.
	c.cmd = exec.Command(c.cfg.Command, c.cfg.Args...)
	c.cmd.Env = os.Environ()
	for k, v := range c.cfg.Env {
		c.cmd.Env = append(c.cmd.Env, k+"="+v)
	}

	stdinPipe, err := c.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutPipe, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("start MCP server: %w", err)
	}

	c.stdin = stdinPipe
	c.session = newRPCSession(c.name, stdoutPipe, stdinPipe, c.notify)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.session.initialize(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

func (c *stdioClient) ListTools(ctx context.Context) ([]ToolInfo, error) {
	if c.session == nil {
		return nil, ErrSessionClosed
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.session.listTools(ctx)
}

func (c *stdioClient) CallTool(ctx context.Context, name string, args map[string]any) (schema.StructuredResult, error) {
	if c.session == nil {
		return schema.StructuredResult{}, ErrSessionClosed
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.session.callTool(ctx, name, args)
}

func (c *stdioClient) Ping(ctx context.Context) error {
	if c.session == nil {
		return ErrSessionClosed
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.session.call(ctx, "ping", nil)
	return err
}

// Close stops the subprocess.
func (c *stdioClient) Close() error {
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}

	exited := make(chan struct{})
	go func() {
		_ = c.cmd.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		c.cmd.Process.Kill() //nolint:errcheck
		<-exited
	}
	return nil
}

func (c *stdioClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, c.cfg.Timeout)
	}
	return ctx, func() {}
}
