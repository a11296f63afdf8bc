package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

type Conversation struct {
	ID       string    `json:"conversation_id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
	Ctime    int64     `json:"ctime"`
	Mtime    int64     `json:"mtime"`
}

// Message timestamps are unix milliseconds.
type Message struct {
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
}
