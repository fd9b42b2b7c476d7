package models

// Message roles understood by every backend.
const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleTool   = "tool"
)

// Message is one entry in the conversation sent to a backend.
// The sequence is rebuilt fresh for every request; no cross-request
// session state is retained by the core.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System_Message builds a system-role message.
func System_Message(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User_Message builds a user-role message.
func User_Message(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Tool_Message builds a tool-role message carrying a tool result.
func Tool_Message(content string) Message {
	return Message{Role: RoleTool, Content: content}
}
