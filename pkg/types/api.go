package types

// ModelsResponse is returned by GET /api/models.
type ModelsResponse struct {
	Success bool `json:"success"`
	// Model name to source text.
	Models map[string]string `json:"models"`
}

// ModelResponse is returned by GET /api/models/{name}.
type ModelResponse struct {
	Success bool   `json:"success"`
	Model   string `json:"model"`
}

// ValidateRequest is the body of POST /api/validate.
type ValidateRequest struct {
	// Model source text.
	Code string `json:"code"`
	// example: Widget
	ModelName string `json:"modelName" example:"Widget"`
}

// DeployRequest is the body of POST /api/deploy.
type DeployRequest struct {
	// example: Widget
	ModelName string `json:"modelName" example:"Widget"`
	Code      string `json:"code"`
}

// MessageResponse carries a human readable outcome.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeployResponse is returned by POST /api/deploy and POST /api/runs/{id}/resume.
type DeployResponse struct {
	Success        bool   `json:"success"`
	RunID          int64  `json:"runId,omitempty"`
	Steps          []Step `json:"steps"`
	RolloutPending bool   `json:"rolloutPending,omitempty"`
}

// DeleteResponse is returned by DELETE /api/models/{name}.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Steps   []Step `json:"steps"`
}

// ClusterStatusResponse is returned by GET /api/cluster/status.
type ClusterStatusResponse struct {
	Success bool          `json:"success"`
	Status  ClusterStatus `json:"status"`
}

// LogsResponse is returned by GET /api/cluster/logs.
type LogsResponse struct {
	Success bool     `json:"success"`
	Logs    []string `json:"logs"`
}

// OutputResponse is returned by GET /api/test/sql.
type OutputResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// RunsResponse is returned by GET /api/runs.
type RunsResponse struct {
	Success bool  `json:"success"`
	Runs    []Run `json:"runs"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Success bool `json:"success"`
	// Error message, duplicated in Error for clients reading either field.
	// example: model not found: Widget
	Message string `json:"message" example:"model not found: Widget"`
	Error   string `json:"error" example:"model not found: Widget"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
	// Set when a deploy or delete pipeline failed partway: the steps that ran,
	// the last one failed.
	RunID int64  `json:"runId,omitempty"`
	Steps []Step `json:"steps,omitempty"`
}
