package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/internal/notes"
	"github.com/khanghh/mcpauth/model"
	"github.com/khanghh/mcpauth/params"
	"github.com/mark3labs/mcp-go/mcp"
)

type MemberDirectory interface {
	SearchMembers(ctx context.Context, orgID uint, keyword string, limit int) ([]model.User, error)
}

type NoteReader interface {
	GetNote(ctx context.Context, orgID uint, userID uint, noteID uint) (*model.Note, error)
	ListRecentNotes(ctx context.Context, orgID uint, userID uint) ([]model.Note, error)
}

type searchUsersArgs struct {
	Query string `json:"query" validate:"max=100"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=25"`
}

type getNoteArgs struct {
	NoteID uint `json:"note_id" validate:"required"`
}

type noArgs struct{}

type builtins struct {
	members MemberDirectory
	notes   NoteReader
}

// RegisterBuiltins adds the notes application tools to registry.
func RegisterBuiltins(registry *Registry, members MemberDirectory, noteReader NoteReader) error {
	b := &builtins{members: members, notes: noteReader}
	tools := []Tool{
		{
			Definition: mcp.NewTool("search_users",
				mcp.WithDescription("Search members of your organization by username, name or email"),
				mcp.WithString("query", mcp.Description("Text to look for; empty lists all members")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of users to return"), mcp.Min(1), mcp.Max(params.SearchUsersLimit)),
			),
			NewArgs: func() any { return &searchUsersArgs{} },
			Handler: b.searchUsers,
		},
		{
			Definition: mcp.NewTool("get_note",
				mcp.WithDescription("Read a single note you have access to"),
				mcp.WithNumber("note_id", mcp.Required(), mcp.Description("ID of the note")),
			),
			NewArgs: func() any { return &getNoteArgs{} },
			Handler: b.getNote,
		},
		{
			Definition: mcp.NewTool("list_recent_notes",
				mcp.WithDescription("List the 10 most recent notes you can read in your organization"),
			),
			NewArgs: func() any { return &noArgs{} },
			Handler: b.listRecentNotes,
		},
		{
			Definition: mcp.NewTool("whoami",
				mcp.WithDescription("Show the user and organization this connection acts for"),
			),
			NewArgs: func() any { return &noArgs{} },
			Handler: b.whoami,
		},
	}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func (b *builtins) searchUsers(ctx context.Context, args any, principal *auth.Principal) (*Result, error) {
	in := args.(*searchUsersArgs)
	users, err := b.members.SearchMembers(ctx, principal.Organization.ID, in.Query, in.Limit)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return ErrorResult(ErrorKindNoResults, "no members of %s match %q", principal.Organization.Name, in.Query), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d member(s) of %s:\n", len(users), principal.Organization.Name)
	for _, u := range users {
		fmt.Fprintf(&sb, "- %s (%s) <%s>\n", u.Username, u.FullName, u.Email)
	}
	return TextResult(strings.TrimRight(sb.String(), "\n")), nil
}

func (b *builtins) getNote(ctx context.Context, args any, principal *auth.Principal) (*Result, error) {
	in := args.(*getNoteArgs)
	note, err := b.notes.GetNote(ctx, principal.Organization.ID, principal.User.ID, in.NoteID)
	if errors.Is(err, notes.ErrNoteNotFound) {
		return ErrorResult(ErrorKindNotFound, "note %d was not found", in.NoteID), nil
	}
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", note.Title)
	fmt.Fprintf(&sb, "id: %d | author: %s | created: %s\n\n", note.ID, authorName(note), note.CreatedAt.UTC().Format(time.RFC3339))
	sb.WriteString(note.Content)
	return TextResult(sb.String()), nil
}

func (b *builtins) listRecentNotes(ctx context.Context, _ any, principal *auth.Principal) (*Result, error) {
	recent, err := b.notes.ListRecentNotes(ctx, principal.Organization.ID, principal.User.ID)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return ErrorResult(ErrorKindNoResults, "there are no notes you can read in %s", principal.Organization.Name), nil
	}
	var sb strings.Builder
	for i, note := range recent {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. [%d] %s by %s on %s\n%s", i+1, note.ID, note.Title, authorName(&note),
			note.CreatedAt.UTC().Format(time.RFC3339), preview(note.Content, params.NotePreviewLength))
	}
	return TextResult(sb.String()), nil
}

func (b *builtins) whoami(_ context.Context, _ any, principal *auth.Principal) (*Result, error) {
	text := fmt.Sprintf("user: %s (%s)\norganization: %s (%s)",
		principal.User.Username, principal.User.FullName,
		principal.Organization.Name, principal.Organization.Slug)
	return TextResult(text), nil
}

func authorName(note *model.Note) string {
	if note.Author == nil {
		return "unknown"
	}
	return note.Author.Username
}

func preview(content string, max int) string {
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	runes := []rune(content)
	return string(runes[:max]) + "…"
}
