package mongo

import "time"

// ArchivedMessage 消息归档文档，主键复用 MySQL 的消息 ID，
// 历史接口从这里读，写入由归档工作池异步完成
type ArchivedMessage struct {
	ID          uint64    `bson:"_id" json:"id"`
	SenderID    uint64    `bson:"sender_id" json:"senderId"`
	RecipientID uint64    `bson:"recipient_id" json:"recipientId"`
	Kind        string    `bson:"kind" json:"kind"` // text / file / call
	Text        string    `bson:"text,omitempty" json:"text"`
	FileID      string    `bson:"file_id,omitempty" json:"fileId"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}
