package http

// AskRequest is the optional JSON body for POST /ask. The question query
// parameter takes precedence.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the response body for POST /ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	OllamaURL string `json:"ollama_url"`
	Model     string `json:"model"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
