package types

// RemoveRequest is the JSON payload for POST /v1/remove.
type RemoveRequest struct {
	// Source image, base64 encoded. A data URL prefix
	// ("data:image/png;base64,") is accepted and stripped.
	// example: iVBORw0KGgoAAAANSUhEUg...
	Image string `json:"image" example:"iVBORw0KGgoAAAANSUhEUg..."`
	// Declared MIME type of the source image. Optional; sniffed from the
	// payload when omitted.
	// example: image/png
	MIME string `json:"mime,omitempty" example:"image/png"`
}

// RemoveResponse is returned by POST /v1/remove.
type RemoveResponse struct {
	// Processed image (background removed), base64-encoded PNG.
	Image string `json:"image"`
	// MIME type of the processed image. Always image/png.
	// example: image/png
	MIME string `json:"mime" example:"image/png"`
	// Identifier assigned to the request at enqueue time.
	// example: 2PdGz4dVjc7Vg0X9hQa8KqFzQxL
	RequestID string `json:"request_id,omitempty" example:"2PdGz4dVjc7Vg0X9hQa8KqFzQxL"`
}

// InitializeRequest is the JSON payload for POST /v1/models/initialize.
type InitializeRequest struct {
	// Optional model identifier. If empty, the capability default is used.
	// example: isnet-general
	Model string `json:"model,omitempty" example:"isnet-general"`
}

// InitializeResponse is returned by POST /v1/models/initialize.
type InitializeResponse struct {
	// True once the model is loaded and ready for inference.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// The model that is actually active. May differ from the requested one
	// on constrained platforms.
	// example: isnet-small
	Model string `json:"model" example:"isnet-small"`
}

// ModelInfoResponse is returned by GET /v1/models/info.
type ModelInfoResponse struct {
	// Identifier of the active model; empty before first initialization.
	// example: isnet-general
	Model string `json:"model" example:"isnet-general"`
	// Whether a hardware-accelerated backend is in use.
	// example: true
	Accelerated bool `json:"accelerated" example:"true"`
	// Whether the process runs on a constrained (mobile-class) platform.
	// example: false
	ConstrainedPlatform bool `json:"constrained_platform" example:"false"`
	// Lifecycle state of the model (uninitialized, initializing, ready,
	// switching, failed).
	// example: ready
	State string `json:"state" example:"ready"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of registered models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid base64 image payload
	Error string `json:"error" example:"invalid base64 image payload"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Lifecycle state of the manager.
	// example: ready
	State string `json:"state" example:"ready"`
	// Identifier of the active model, if any.
	// example: isnet-general
	Model string `json:"model,omitempty" example:"isnet-general"`
	// Backend the active model was loaded on.
	// example: gpu
	Backend string `json:"backend,omitempty" example:"gpu"`
	// Whether the capability probe detected acceleration.
	// example: true
	Accelerated bool `json:"accelerated" example:"true"`
	// Whether the capability probe detected a constrained platform.
	// example: false
	ConstrainedPlatform bool `json:"constrained_platform" example:"false"`
	// Number of requests waiting in the inference queue.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Whether a request is currently executing.
	// example: false
	Inflight bool `json:"inflight" example:"false"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Total model loads since process start.
	// example: 2
	LoadsTotal uint64 `json:"loads_total" example:"2"`
	// Total requests processed (resolved or rejected) since process start.
	// example: 41
	ProcessedTotal uint64 `json:"processed_total" example:"41"`
	// Last error observed by the manager, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
