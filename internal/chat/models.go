package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

func ValidRole(r string) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Thread struct {
	ID           string    `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(36);not null;index:idx_chat_thread_user_updated,priority:1" json:"user_id"`
	Title        string    `gorm:"type:text;not null" json:"title"`
	MessageCount int       `gorm:"not null;default:0" json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `gorm:"index:idx_chat_thread_user_updated,priority:2" json:"updated_at"`
}

func (Thread) TableName() string { return "chat_threads" }

type Message struct {
	ID             string    `gorm:"type:varchar(26);primaryKey" json:"id"`
	ThreadID       string    `gorm:"type:varchar(26);not null;index:idx_chat_msg_thread_created,priority:1;index:uniq_chat_msg_idempo,unique,priority:2" json:"thread_id"`
	UserID         string    `gorm:"type:varchar(36);not null;index:uniq_chat_msg_idempo,unique,priority:1" json:"user_id"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	IdempotencyKey *string   `gorm:"type:varchar(128);index:uniq_chat_msg_idempo,unique,priority:3" json:"-"`
	CreatedAt      time.Time `gorm:"index:idx_chat_msg_thread_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }
