// Request and response types for the chat turn API.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// MaxMessageContentBytes bounds a single chat message. Checked as byte
// length, not rune count, to keep oversized payloads out of the loop.
const MaxMessageContentBytes = 32 * 1024

// chatValidate is the shared validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// ChatRequest is the body of POST /api/chat. The first selected server is
// used for tool dispatch; the rest are ignored.
type ChatRequest struct {
	Message         string   `json:"message" validate:"required,maxbytes"`
	SelectedServers []string `json:"selected_servers" validate:"required,min=1"`
}

// Validate checks the request after JSON binding.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ResponseData is the auxiliary payload built when a citation requested a
// non-default output representation (table, csv, dataframe). It is derived
// from the already-stored tool result, never from a fresh call.
type ResponseData struct {
	Tool   string         `json:"tool"`
	Format string         `json:"format"`
	Result map[string]any `json:"result"`
}

// Timing reports how long a chat turn took, for the UI.
type Timing struct {
	StartedAt  int64 `json:"started_at"`
	DurationMs int64 `json:"duration_ms"`
}

// ChatResponse is the body returned by POST /api/chat.
type ChatResponse struct {
	Success     bool          `json:"success"`
	Response    string        `json:"response"`
	Citations   []CitationRef `json:"citations"`
	Data        *ResponseData `json:"data"`
	ChatHistory []Turn        `json:"chat_history"`
	Timing      *Timing       `json:"timing"`
}
