package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vishalm/LlamaBot/internal/page"
	"github.com/vishalm/LlamaBot/internal/tools"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func newRegistry(t *testing.T) (*tools.Registry, page.Paths) {
	t.Helper()
	dir := t.TempDir()
	paths := page.Paths{
		HTML: filepath.Join(dir, "page.html"),
		CSS:  filepath.Join(dir, "assets", "page.css"),
		JS:   filepath.Join(dir, "assets", "page.js"),
	}
	return tools.NewRegistry(tools.PageTools(page.NewStore(paths))...), paths
}

func TestNewRegistersTools(t *testing.T) {
	registry, _ := newRegistry(t)
	s := New(registry, "test", nil)
	require.NotNil(t, s)
}

func TestHandlerWritesPage(t *testing.T) {
	registry, paths := newRegistry(t)
	handler := Handler(registry, "write_html", nil)

	result, err := handler(context.Background(), callRequest("write_html", map[string]any{"html_code": "<h1>Hi</h1>"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "HTML code written to page.html", resultText(t, result))

	written, err := os.ReadFile(paths.HTML)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hi</h1>", string(written))
}

func TestHandlerReportsInvalidArguments(t *testing.T) {
	registry, _ := newRegistry(t)
	handler := Handler(registry, "write_html", nil)

	result, err := handler(context.Background(), callRequest("write_html", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid tool arguments")
}

type failingInvoker struct{}

func (failingInvoker) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	return "", tools.ErrUnknownTool
}

func TestHandlerReportsToolFailure(t *testing.T) {
	result, err := Handler(failingInvoker{}, "missing", nil)(context.Background(), callRequest("missing", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, tools.ErrUnknownTool.Error(), resultText(t, result))
}
