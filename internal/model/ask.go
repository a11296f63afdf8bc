package model

type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type AskRequest struct {
	Query               string           `json:"query"`
	ConversationID      string           `json:"conversation_id"`
	Provider            string           `json:"provider"`
	NumResults          int              `json:"num_results"`
	ConversationHistory []HistoryMessage `json:"conversation_history"`
}

type AskResponse struct {
	Answer         string     `json:"answer"`
	ConversationID string     `json:"conversation_id"`
	Citations      []Citation `json:"citations"`
}
