package types

// ChatRequest is the payload for POST /v1/chat and /v1/chat/stream.
type ChatRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: gemma-2b-it-int4
	Model string `json:"model,omitempty" example:"gemma-2b-it-int4"`
	// Ordered chat transcript. At least one message is required.
	Messages []Message `json:"messages"`
}

// StructuredRequest is the payload for POST /v1/chat/structured.
type StructuredRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: gemma-2b-it-int4
	Model string `json:"model,omitempty" example:"gemma-2b-it-int4"`
	// Ordered chat transcript. At least one message is required.
	Messages []Message `json:"messages"`
	// JSON Schema the response must conform to.
	Schema map[string]any `json:"schema"`
	// Maximum number of generate-and-validate attempts. Defaults to 3.
	// example: 3
	MaxRetries int `json:"max_retries,omitempty" example:"3"`
	// Optional system prompt template. Must contain the {{schema}}
	// placeholder, substituted with the serialized schema.
	SystemPromptTemplate string `json:"system_prompt_template,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Models discovered in the models directory.
	Models []Model `json:"models"`
	// Registered downloadable models and their download state.
	Downloads []ModelInfo `json:"downloads,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// SessionStatus summarizes one live engine session for /status.
type SessionStatus struct {
	// Caller-facing session identifier.
	SessionID string `json:"session_id"`
	// Model the session was created for.
	// example: gemma-2b-it-int4
	ModelID string `json:"model_id" example:"gemma-2b-it-int4"`
	// Request id of the in-flight generation, 0 when idle.
	// example: 17
	InflightRequest int32 `json:"inflight_request,omitempty" example:"17"`
	// Number of requests waiting for the in-flight slot.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Last time this session served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Live sessions keyed by session id.
	Sessions []SessionStatus `json:"sessions"`
	// Total generations started since boot.
	// example: 12
	GenerationsTotal uint64 `json:"generations_total" example:"12"`
	// Total generations aborted by callers.
	// example: 1
	AbortsTotal uint64 `json:"aborts_total" example:"1"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Last error observed by the bridge (if any).
	LastError string `json:"last_error,omitempty"`
}
