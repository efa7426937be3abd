// Package exporters writes conversation transcripts to disk as JSON or
// Markdown files under a configured exports directory.
package exporters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harborpoint/netchat/services/chat/datatypes"
)

// Format names accepted by Export.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ErrUnknownFormat is returned for formats other than json and markdown.
var ErrUnknownFormat = fmt.Errorf("unknown export format")

// Exporter writes transcripts under Dir, creating it on first use.
type Exporter struct {
	dir string
	now func() time.Time
}

// New builds an exporter rooted at dir.
func New(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// Export writes the turns in the named format and returns the file path.
func (e *Exporter) Export(format string, turns []datatypes.Turn) (string, error) {
	switch format {
	case FormatJSON:
		return e.exportJSON(turns)
	case FormatMarkdown:
		return e.exportMarkdown(turns)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func (e *Exporter) path(extension string) (string, error) {
	if err := os.MkdirAll(e.dir, 0750); err != nil {
		return "", fmt.Errorf("create exports directory: %w", err)
	}
	name := fmt.Sprintf("transcript_%s.%s", e.now().Format("20060102_150405"), extension)
	return filepath.Join(e.dir, name), nil
}

type jsonTurn struct {
	TurnNumber int                     `json:"turn_number"`
	Timestamp  time.Time               `json:"timestamp"`
	Role       string                  `json:"role"`
	Text       string                  `json:"text"`
	ToolCalls  []datatypes.CitationRef `json:"tool_calls"`
}

type jsonTranscript struct {
	ExportedAt time.Time  `json:"exported_at"`
	TotalTurns int        `json:"total_turns"`
	Turns      []jsonTurn `json:"turns"`
}

func (e *Exporter) exportJSON(turns []datatypes.Turn) (string, error) {
	path, err := e.path("json")
	if err != nil {
		return "", err
	}

	transcript := jsonTranscript{
		ExportedAt: e.now(),
		TotalTurns: len(turns),
		Turns:      make([]jsonTurn, 0, len(turns)),
	}
	for i, turn := range turns {
		citations := turn.Citations
		if citations == nil {
			citations = []datatypes.CitationRef{}
		}
		transcript.Turns = append(transcript.Turns, jsonTurn{
			TurnNumber: i + 1,
			Timestamp:  turn.Timestamp,
			Role:       turn.Role,
			Text:       turn.Text,
			ToolCalls:  citations,
		})
	}

	encoded, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0640); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

func (e *Exporter) exportMarkdown(turns []datatypes.Turn) (string, error) {
	path, err := e.path("md")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Chat Transcript\n\n")
	fmt.Fprintf(&sb, "**Exported:** %s\n", e.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "**Total Turns:** %d\n\n---\n\n", len(turns))

	for i, turn := range turns {
		fmt.Fprintf(&sb, "## Turn %d: %s\n\n%s\n\n", i+1, strings.ToUpper(turn.Role), turn.Text)

		if len(turn.Citations) > 0 {
			sb.WriteString("### Tool Calls\n\n")
			for j, cite := range turn.Citations {
				fmt.Fprintf(&sb, "**Tool %d:** %s\n\n", j+1, cite.Tool)
				if len(cite.Args) > 0 {
					args, err := json.MarshalIndent(cite.Args, "", "  ")
					if err == nil {
						fmt.Fprintf(&sb, "**Arguments:**\n```json\n%s\n```\n\n", args)
					}
				}
				if cite.Error != "" {
					fmt.Fprintf(&sb, "**Error:** %s\n\n", cite.Error)
				}
			}
		}
		sb.WriteString("---\n\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0640); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}
