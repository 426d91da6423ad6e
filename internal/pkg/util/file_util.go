package util

import (
	"mime"
	"mime/multipart"
	"path/filepath"
)

// GetSafeContentType 优先取上传方声明的 Content-Type，缺失时按扩展名推断
func GetSafeContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(header.Filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
