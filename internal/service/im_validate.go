package service

import (
	"Bazaar/internal/api/dto"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// 入站帧字段校验，全部以 (值, *dto.ChatError) 的结果形式返回，
// 不抛错也不写库，唯一触库的目标用户解析在 ChatService.ResolveUser 里

// validateTargetPk 目标用户标识：必须存在且可解析为正整数
func validateTargetPk(pk *string) (uint64, *dto.ChatError) {
	if pk == nil {
		return 0, dto.NewChatError(dto.ErrKindMessageParsing, "'user_pk' error")
	}
	id, err := strconv.ParseUint(*pk, 10, 64)
	if err != nil || id == 0 {
		return 0, dto.NewChatError(dto.ErrKindMessageParsing, "'user_pk' error")
	}
	return id, nil
}

// validateText 消息正文：存在、去除首尾空白后非空、长度不超过上限
func validateText(text *string, maxLen int) (string, *dto.ChatError) {
	if text == nil {
		return "", dto.NewChatError(dto.ErrKindMessageParsing, "'text' error")
	}
	if strings.TrimSpace(*text) == "" {
		return "", dto.NewChatError(dto.ErrKindMessageParsing, "'text' error")
	}
	if len(*text) > maxLen {
		return "", dto.NewChatError(dto.ErrKindMessageParsing,
			fmt.Sprintf("'text' exceeds %d characters", maxLen))
	}
	return *text, nil
}

// validateRandomID 本地占位号：必须是严格负数的整数串，
// 持久化后的正数 ID 永远不会与之冲突
func validateRandomID(randomID *string) (string, *dto.ChatError) {
	if randomID == nil {
		return "", dto.NewChatError(dto.ErrKindMessageParsing, "'random_id' error")
	}
	n, err := strconv.ParseInt(*randomID, 10, 64)
	if err != nil || n >= 0 {
		return "", dto.NewChatError(dto.ErrKindMessageParsing, "'random_id' error")
	}
	return *randomID, nil
}

// validateMessageID 已读回执指向的消息 ID：必须是严格正数的整数串
func validateMessageID(messageID *string) (uint64, *dto.ChatError) {
	if messageID == nil {
		return 0, dto.NewChatError(dto.ErrKindInvalidMessageReadId, "'message_id' error")
	}
	n, err := strconv.ParseInt(*messageID, 10, 64)
	if err != nil || n <= 0 {
		return 0, dto.NewChatError(dto.ErrKindInvalidMessageReadId, "'message_id' error")
	}
	return uint64(n), nil
}

// validateSignalPayload 呼叫信令载荷：必须存在且是 JSON 对象
func validateSignalPayload(payload json.RawMessage, field string) (json.RawMessage, *dto.ChatError) {
	if len(payload) == 0 {
		return nil, dto.NewChatError(dto.ErrKindMessageParsing, "'"+field+"' error")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, dto.NewChatError(dto.ErrKindMessageParsing, "'"+field+"' error")
	}
	return payload, nil
}

// validateReason 拒接原因：可缺省，给出时长度不超过上限
func validateReason(reason *string, maxLen int) (*string, *dto.ChatError) {
	if reason == nil {
		return nil, nil
	}
	if len(*reason) > maxLen {
		return nil, dto.NewChatError(dto.ErrKindMessageParsing, "'reason' error")
	}
	return reason, nil
}
