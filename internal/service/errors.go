package service

import "github.com/pkg/errors"

var (
	ErrUserNotFound    = errors.New("用户不存在")
	ErrMessageNotFound = errors.New("消息不存在")
	ErrFileNotFound    = errors.New("文件不存在")
	ErrNoPermission    = errors.New("没有权限")
	ErrFileTooLarge    = errors.New("文件过大")
	ErrInvalidToken    = errors.New("无效的凭证")
)

// ErrorMap 错误码映射
var ErrorMap = map[error]int{
	ErrUserNotFound:    404,
	ErrMessageNotFound: 404,
	ErrFileNotFound:    404,
	ErrNoPermission:    403,
	ErrFileTooLarge:    400,
	ErrInvalidToken:    401,
}
