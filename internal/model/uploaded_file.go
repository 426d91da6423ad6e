package model

import "time"

// UploadedFile 聊天附件元数据，对象本体存放在 MinIO
type UploadedFile struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"` // uuid
	UploadedByID uint64    `gorm:"not null;index" json:"uploadedById"`
	ObjectKey    string    `gorm:"type:varchar(512);not null" json:"objectKey"`
	OriginalName string    `gorm:"type:varchar(255)" json:"originalName"`
	ContentType  string    `gorm:"type:varchar(127)" json:"contentType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
}

func (UploadedFile) TableName() string { return "uploaded_files" }
