package tools

import (
	"encoding/base64"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// Error kinds let clients tell apart a malformed call from a lookup that
// found nothing.
const (
	ErrorKindBadInput     = "bad_input"
	ErrorKindNotFound     = "not_found"
	ErrorKindNoResults    = "no_results"
	ErrorKindUnauthorized = "unauthorized"
)

type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

type Result struct {
	Content   []Content `json:"content"`
	IsError   bool      `json:"isError"`
	ErrorKind string    `json:"errorKind,omitempty"`
}

func TextResult(text string) *Result {
	return &Result{Content: []Content{{Type: ContentTypeText, Text: text}}}
}

// ImageResult carries raw image bytes; they are base64 encoded on the wire.
func ImageResult(data []byte, mimeType string) *Result {
	return &Result{Content: []Content{{
		Type:     ContentTypeImage,
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: mimeType,
	}}}
}

func ErrorResult(kind string, format string, args ...any) *Result {
	return &Result{
		Content:   []Content{{Type: ContentTypeText, Text: kind + ": " + fmt.Sprintf(format, args...)}},
		IsError:   true,
		ErrorKind: kind,
	}
}

// ToMCP converts the result into the MCP wire type.
func (r *Result) ToMCP() *mcp.CallToolResult {
	out := &mcp.CallToolResult{IsError: r.IsError}
	for _, c := range r.Content {
		switch c.Type {
		case ContentTypeImage:
			out.Content = append(out.Content, mcp.NewImageContent(c.Data, c.MIMEType))
		default:
			out.Content = append(out.Content, mcp.NewTextContent(c.Text))
		}
	}
	return out
}
