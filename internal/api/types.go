package api

import "github.com/satriahrh/talking-avatar/domain/entities"

// ChatRequest is the body of POST /chat. An empty message asks for the greeting.
type ChatRequest struct {
	Message string `json:"message" validate:"max=4000"`
}

// MessagesResponse wraps the voiced replies of /chat and /process-audio
type MessagesResponse struct {
	Messages []entities.ReplyMessage `json:"messages"`
}

// KnowledgeRequest is the body of POST /getKnowledgeBase
type KnowledgeRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
}

// KnowledgeResponse carries the raw retrieval result set
type KnowledgeResponse struct {
	QueryResponse *entities.KnowledgeResult `json:"queryResponse"`
}

// VoicesResponse mirrors the provider's voice catalog envelope
type VoicesResponse struct {
	Voices []map[string]interface{} `json:"voices"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Configured bool   `json:"configured"`
	Clients    int    `json:"clients"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
