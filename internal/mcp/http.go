package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcpgo "github.com/metoro-io/mcp-golang"
	mcptransport "github.com/metoro-io/mcp-golang/transport"
	mcphttp "github.com/metoro-io/mcp-golang/transport/http"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

// httpClient reaches a server over streamable HTTP. The transport is
// stateless, so the server cannot push notifications over it.
// Tool results flagged isError come back as errors wrapping ErrToolFailed.
type httpClient struct {
	name string
	cfg  ServerConfig

	mu          sync.Mutex
	client      *mcpgo.Client
	initialized bool
}

func newHTTPClient(name string, cfg ServerConfig) *httpClient {
	transport := mcphttp.NewHTTPClientTransport(cfg.URL)
	for k, v := range cfg.Headers {
		transport.WithHeader(k, v)
	}

	return &httpClient{
		name: name,
		cfg:  cfg,
		client: mcpgo.NewClientWithInfo(&resultTransport{transport}, mcpgo.ClientInfo{
			Name:    clientName,
			Version: clientVersion,
		}),
	}
}

func (c *httpClient) Name() string { return c.name }

func (c *httpClient) Connect(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ensureInitialized(ctx)
}

func (c *httpClient) ensureInitialized(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	if _, err := c.client.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	c.initialized = true
	return nil
}

func (c *httpClient) ListTools(ctx context.Context) ([]ToolInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	var out []ToolInfo
	var cursor *string
	for {
		resp, err := c.client.ListTools(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}
		for _, t := range resp.Tools {
			description := ""
			if t.Description != nil {
				description = *t.Description
			}
			out = append(out, ToolInfo{
				Name:        t.Name,
				Description: description,
				InputSchema: normalizeSchema(t.InputSchema),
			})
		}
		if resp.NextCursor == nil || *resp.NextCursor == "" {
			return out, nil
		}
		cursor = resp.NextCursor
	}
}

func (c *httpClient) CallTool(ctx context.Context, name string, args map[string]any) (schema.StructuredResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.ensureInitialized(ctx); err != nil {
		return schema.StructuredResult{}, err
	}

	var flags resultFlags
	resp, err := c.client.CallTool(context.WithValue(ctx, resultFlagsKey{}, &flags), name, args)
	if err != nil {
		return schema.StructuredResult{}, fmt.Errorf("failed to call tool %q: %w", name, err)
	}
	out := fromToolResponse(resp)
	if flags.IsError {
		return out, toolError(out)
	}
	return out, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.ensureInitialized(ctx); err != nil {
		return err
	}
	if err := c.client.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close is a no-op: there is no persistent connection to tear down.
func (c *httpClient) Close() error { return nil }

func (c *httpClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, c.cfg.Timeout)
	}
	return ctx, func() {}
}

// resultFlags are the tools/call result fields the library's ToolResponse
// does not carry.
type resultFlags struct {
	IsError bool `json:"isError"`
}

type resultFlagsKey struct{}

// resultTransport records resultFlags for calls whose context carries a
// *resultFlags. The HTTP transport hands each response to the message
// handler synchronously with the sender's context.
type resultTransport struct {
	*mcphttp.HTTPClientTransport
}

func (t *resultTransport) SetMessageHandler(handler func(ctx context.Context, msg *mcptransport.BaseJsonRpcMessage)) {
	t.HTTPClientTransport.SetMessageHandler(func(ctx context.Context, msg *mcptransport.BaseJsonRpcMessage) {
		if flags, ok := ctx.Value(resultFlagsKey{}).(*resultFlags); ok &&
			msg.Type == mcptransport.BaseMessageTypeJSONRPCResponseType && msg.JsonRpcResponse != nil {
			_ = json.Unmarshal(msg.JsonRpcResponse.Result, flags)
		}
		handler(ctx, msg)
	})
}

// fromToolResponse converts library content blocks into typed result items.
func fromToolResponse(resp *mcpgo.ToolResponse) schema.StructuredResult {
	if resp == nil {
		return schema.StructuredResult{}
	}
	out := schema.StructuredResult{Content: make([]schema.ContentItem, 0, len(resp.Content))}
	for _, content := range resp.Content {
		if content == nil {
			continue
		}
		item := schema.ContentItem{Type: string(content.Type)}
		switch {
		case content.TextContent != nil:
			item.Text = content.TextContent.Text
		case content.EmbeddedResource != nil && content.EmbeddedResource.TextResourceContents != nil:
			item.Text = content.EmbeddedResource.TextResourceContents.Text
		}
		out.Content = append(out.Content, item)
	}
	return out
}
