package dto

import "time"

// ChatMessageDTO 历史消息明细响应
type ChatMessageDTO struct {
	ID        uint64    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Kind      string    `json:"kind"` // text / file / call
	Text      string    `json:"text"`
	File      *FileDTO  `json:"file,omitempty"`
	Out       bool      `json:"out"` // 是否为当前用户发出
	CreatedAt time.Time `json:"created_at"`
}

// DialogDTO 会话列表项响应
type DialogDTO struct {
	PartnerID       string    `json:"partner_id"`
	PartnerUsername string    `json:"partner_username"`
	PartnerName     string    `json:"partner_name"`
	UnreadCount     int64     `json:"unread_count"`
	LastMessage     string    `json:"last_message"`
	LastMessageAt   time.Time `json:"last_message_at"`
}

// ChatUserDTO 用户目录项响应
type ChatUserDTO struct {
	ID         string `json:"pk"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsProvider bool   `json:"is_provider"`
	IsBuyer    bool   `json:"is_buyer"`
}

// SelfInfoDTO 当前用户信息响应
type SelfInfoDTO struct {
	Pk       string `json:"pk"`
	Username string `json:"username"`
}
