package types

// Role tags a chat message with its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one ordered piece of message content: either text or a media
// reference. Media parts carry a URI (plain path or file:// URL; data: URIs
// are detected and skipped at attach time) plus a media type such as
// image/png or audio/wav.
type Part struct {
	Text      string `json:"text,omitempty"`
	URI       string `json:"uri,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// NewTextPart returns a text-only part.
func NewTextPart(text string) Part { return Part{Text: text} }

// NewMediaPart returns a media reference part.
func NewMediaPart(uri, mediaType string) Part {
	return Part{URI: uri, MediaType: mediaType}
}

// IsMedia reports whether the part references media rather than text.
func (p Part) IsMedia() bool { return p.URI != "" || (p.Text == "" && p.MediaType != "") }

// Message is a role-tagged list of ordered content parts.
type Message struct {
	Role    Role   `json:"role"`
	Content []Part `json:"content"`
}

// TextMessage builds a message with a single text part.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []Part{NewTextPart(text)}}
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Content {
		out += p.Text
	}
	return out
}

// Finish reasons reported by generation results.
const (
	FinishStop             = "stop"
	FinishError            = "error"
	FinishAborted          = "aborted"
	FinishValidationFailed = "validation_failed"
)

// GenerateResult is the outcome of a blocking chat call. The blocking path
// never raises on engine errors; callers that want hard failure must check
// FinishReason.
type GenerateResult struct {
	// Full generated text ("" when FinishReason is "error").
	Text string `json:"text"`
	// One of "stop", "error", "aborted".
	FinishReason string `json:"finish_reason"`
}

// StructuredResult is the outcome of a structured-output call.
type StructuredResult struct {
	// Parsed JSON value that passed schema validation; empty on failure.
	Data map[string]any `json:"data,omitempty"`
	// Raw engine output of the successful attempt.
	RawJSON string `json:"raw_json,omitempty"`
	// Number of attempts performed (1-based).
	Attempts int `json:"attempts"`
	// "stop" on success, "validation_failed" after exhausting retries.
	FinishReason string `json:"finish_reason"`
	// Human-readable diagnostics accumulated across failed attempts.
	Diagnostics string `json:"diagnostics,omitempty"`
}

// Model describes a loadable model bundle on disk.
type Model struct {
	// Stable identifier for the model.
	// example: gemma-2b-it-int4
	ID string `json:"id" example:"gemma-2b-it-int4"`
	// Human-friendly name.
	// example: Gemma 2B (int4)
	Name string `json:"name" example:"Gemma 2B (int4)"`
	// Absolute path to the model bundle on disk.
	// example: /home/user/models/gemma-2b-it-int4.task
	Path string `json:"path" example:"/home/user/models/gemma-2b-it-int4.task"`
	// Bundle format, derived from the file extension.
	// example: task
	Format string `json:"format,omitempty" example:"task"`
}

// DownloadStatus enumerates the lifecycle of a downloadable model.
type DownloadStatus string

const (
	DownloadNotStarted DownloadStatus = "not_downloaded"
	DownloadInProgress DownloadStatus = "downloading"
	DownloadDone       DownloadStatus = "downloaded"
	DownloadError      DownloadStatus = "error"
)

// ModelInfo tracks a registered downloadable model. Created on registration,
// mutated by download progress, removed only by explicit delete.
type ModelInfo struct {
	// Registered model name.
	// example: gemma-2b-it-int4
	Name string `json:"name" example:"gemma-2b-it-int4"`
	// Source URL the bundle is fetched from.
	URL string `json:"url"`
	// Current download status.
	// example: downloaded
	Status DownloadStatus `json:"status" example:"downloaded"`
	// Download progress fraction in [0,1]. Only meaningful while downloading.
	// example: 0.42
	Progress float64 `json:"progress,omitempty" example:"0.42"`
	// Error message when Status is "error".
	Error string `json:"error,omitempty"`
	// Local path of the downloaded bundle when Status is "downloaded".
	Path string `json:"path,omitempty"`
}
