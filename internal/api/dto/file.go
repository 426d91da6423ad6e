package dto

import "time"

// FileDTO 上传文件响应
type FileDTO struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
