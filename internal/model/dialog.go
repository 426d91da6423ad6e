package model

import "time"

// Dialog 会话关系表：两名用户只要互通过消息就存在一行，
// 成对字段按 UserAID < UserBID 归一化以保证唯一
type Dialog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserAID   uint64    `gorm:"not null;uniqueIndex:idx_dialog_pair;index" json:"userAId"`
	UserBID   uint64    `gorm:"not null;uniqueIndex:idx_dialog_pair;index" json:"userBId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Dialog) TableName() string { return "dialogs" }

// OrderedPair 归一化两个用户 ID 的顺序
func OrderedPair(u1, u2 uint64) (uint64, uint64) {
	if u1 < u2 {
		return u1, u2
	}
	return u2, u1
}
