package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"agentloop/internal/logger"
	"agentloop/internal/store"
)

// NoteStore is the persistence the note tools need. *store.DB satisfies it.
type NoteStore interface {
	SaveNote(ctx context.Context, user, content string) (store.Note, error)
	ListNotes(ctx context.Context, user string) ([]store.Note, error)
	SearchNotes(ctx context.Context, user, query string) ([]store.Note, error)
	DeleteNote(ctx context.Context, user, id string) error
}

type SaveNoteArgs struct {
	Note string `json:"note"`
}

type DeleteNoteArgs struct {
	ID string `json:"id"`
}

type SearchNotesArgs struct {
	Query string `json:"query"`
}

// NoteTool implements save_note, list_notes, search_notes and delete_note.
// Notes always belong to the caller from the context.
type NoteTool struct {
	BaseTool
	store NoteStore
}

func NewSaveNoteTool(s NoteStore) *NoteTool {
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"note": {
				Type:        jsonschema.String,
				Description: "The note content to save",
			},
		},
		Required: []string{"note"},
	}

	return &NoteTool{
		BaseTool: BaseTool{
			ToolName:        "save_note",
			ToolDescription: "Save a user note that will be used as part of the system prompt in future conversations",
			ToolParameters:  params,
		},
		store: s,
	}
}

func NewDeleteNoteTool(s NoteStore) *NoteTool {
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"id": {
				Type:        jsonschema.String,
				Description: "The ID of the note to delete",
			},
		},
		Required: []string{"id"},
	}

	return &NoteTool{
		BaseTool: BaseTool{
			ToolName:        "delete_note",
			ToolDescription: "Delete one of the user's notes by its ID (use search_notes first to find the ID)",
			ToolParameters:  params,
		},
		store: s,
	}
}

func NewListNotesTool(s NoteStore) *NoteTool {
	return &NoteTool{
		BaseTool: BaseTool{
			ToolName:        "list_notes",
			ToolDescription: "List all of the user's saved notes",
			ToolParameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: map[string]jsonschema.Definition{},
			},
		},
		store: s,
	}
}

func NewSearchNotesTool(s NoteStore) *NoteTool {
	params := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"query": {
				Type:        jsonschema.String,
				Description: "The search term to find in notes",
			},
		},
		Required: []string{"query"},
	}

	return &NoteTool{
		BaseTool: BaseTool{
			ToolName:        "search_notes",
			ToolDescription: "Search the user's notes for specific text",
			ToolParameters:  params,
		},
		store: s,
	}
}

// Execute runs the note operation named by the tool.
func (t *NoteTool) Execute(ctx context.Context, args string) (string, error) {
	user := CallerFrom(ctx)
	logger.AIDebugf("Executing note tool operation: %s for %s", t.Name(), user)

	switch t.Name() {
	case "save_note":
		var params SaveNoteArgs
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %v", err)
		}
		note, err := t.store.SaveNote(ctx, user, params.Note)
		if err != nil {
			return "", err
		}
		logger.Infof("Note saved for user %s: %s", user, note.Note)
		return fmt.Sprintf("Note saved with ID: %s", note.ID), nil

	case "delete_note":
		var params DeleteNoteArgs
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %v", err)
		}
		if err := t.store.DeleteNote(ctx, user, strings.TrimSpace(params.ID)); err != nil {
			return "", err
		}
		return fmt.Sprintf("Note with ID %s successfully deleted", params.ID), nil

	case "list_notes":
		notes, err := t.store.ListNotes(ctx, user)
		if err != nil {
			return "", err
		}
		if len(notes) == 0 {
			return "No notes found", nil
		}
		return formatNotes(fmt.Sprintf("Found %d notes:", len(notes)), notes), nil

	case "search_notes":
		var params SearchNotesArgs
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", fmt.Errorf("invalid arguments: %v", err)
		}
		query := strings.TrimSpace(params.Query)
		if query == "" {
			return "", fmt.Errorf("search query cannot be empty")
		}
		notes, err := t.store.SearchNotes(ctx, user, query)
		if err != nil {
			return "", err
		}
		if len(notes) == 0 {
			return fmt.Sprintf("No notes found matching query: %s", query), nil
		}
		return formatNotes(fmt.Sprintf("Found %d notes matching '%s':", len(notes), query), notes), nil

	default:
		return "", fmt.Errorf("unknown note operation: %s", t.Name())
	}
}

func formatNotes(header string, notes []store.Note) string {
	var result strings.Builder
	result.WriteString(header)
	result.WriteString("\n")
	for _, note := range notes {
		fmt.Fprintf(&result, "\nID: %s | Date: %s\nContent: %s\n", note.ID, note.CreatedAt.Format("2006-01-02 15:04"), note.Note)
	}
	return strings.TrimRight(result.String(), "\n")
}

// UserNotesContext formats a user's notes for inclusion in the system prompt.
// It returns "" when there are none or the store fails.
func UserNotesContext(ctx context.Context, s NoteStore, user string) string {
	if s == nil || user == "" {
		return ""
	}
	notes, err := s.ListNotes(ctx, user)
	if err != nil {
		logger.Errorf("Failed to load notes: %v", err)
		return ""
	}
	if len(notes) == 0 {
		return ""
	}

	var result strings.Builder
	result.WriteString("User-specific context from notes:\n")
	for _, note := range notes {
		fmt.Fprintf(&result, "- %s\n", note.Note)
	}
	return result.String()
}
