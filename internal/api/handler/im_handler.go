package handler

import (
	"Bazaar/internal/pkg/consts"
	"Bazaar/internal/pkg/response"
	"Bazaar/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	chatService service.ChatService
}

func NewIMHandler(chatService service.ChatService) *IMHandler {
	return &IMHandler{chatService: chatService}
}

// GetMessages 获取历史消息
// dialog_with 限定会话对端；last_id 为上一页最旧一条的 ID，首页传空
func (s *IMHandler) GetMessages(c *gin.Context) {
	userID := c.GetUint64("user_id")
	dialogWith, _ := strconv.ParseUint(c.Query("dialog_with"), 10, 64)
	lastID, _ := strconv.ParseUint(c.Query("last_id"), 10, 64)
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	if pageSize <= 0 || pageSize > consts.ChatHistoryPageSize {
		pageSize = consts.ChatHistoryPageSize
	}

	res, err := s.chatService.MessageHistory(c, userID, dialogWith, lastID, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetDialogs 获取会话列表
func (s *IMHandler) GetDialogs(c *gin.Context) {
	userID := c.GetUint64("user_id")

	res, err := s.chatService.DialogList(c, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetSelf 获取当前用户信息
func (s *IMHandler) GetSelf(c *gin.Context) {
	userID := c.GetUint64("user_id")

	res, err := s.chatService.SelfInfo(c, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetUsers 用户目录，query 参数按姓名或邮箱模糊过滤
func (s *IMHandler) GetUsers(c *gin.Context) {
	userID := c.GetUint64("user_id")
	query := c.Query("query")

	res, err := s.chatService.UserDirectory(c, userID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
