package api

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a generic success response.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// DepthResponse is the tree depth of one conversation.
type DepthResponse struct {
	ConversationID string `json:"conversation_id"`
	Depth          int    `json:"depth"`
	Messages       int    `json:"messages"`
	Edges          int    `json:"edges"`
}

// RefreshResponse reports the reloaded relation sizes.
type RefreshResponse struct {
	Success       bool `json:"success"`
	Conversations int  `json:"conversations"`
	Messages      int  `json:"messages"`
	Edges         int  `json:"edges"`
}
