package model

import "time"

// 消息种类
const (
	MessageKindText int8 = 1
	MessageKindFile int8 = 2
	MessageKindCall int8 = 3
)

// Message 点对点消息主表，ID 由自增主键保证单调唯一
type Message struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID    uint64     `gorm:"not null;index:idx_sender_recipient" json:"senderId"`
	RecipientID uint64     `gorm:"not null;index:idx_sender_recipient" json:"recipientId"`
	Kind        int8       `gorm:"not null;default:1" json:"kind"`
	Text        string     `gorm:"type:text" json:"text"`
	FileID      *string    `gorm:"type:varchar(36);index" json:"fileId"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	ReadAt      *time.Time `json:"readAt"` // 只置位一次，重复标记为空操作
}

func (Message) TableName() string { return "messages" }

// KindName 返回消息种类的字符串形式
func (m *Message) KindName() string {
	switch m.Kind {
	case MessageKindFile:
		return "file"
	case MessageKindCall:
		return "call"
	default:
		return "text"
	}
}
