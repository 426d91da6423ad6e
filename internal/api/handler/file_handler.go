package handler

import (
	"Bazaar/internal/pkg/response"
	"Bazaar/internal/service"

	"github.com/gin-gonic/gin"
)

type FileHandler struct {
	fileService service.FileService
}

func NewFileHandler(fileService service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// Upload 上传聊天附件
func (s *FileHandler) Upload(c *gin.Context) {
	userID := c.GetUint64("user_id")

	header, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, response.BadRequest, "缺少文件")
		return
	}

	res, err := s.fileService.Upload(c, userID, header)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetFile 获取附件元数据
func (s *FileHandler) GetFile(c *gin.Context) {
	id := c.Param("file_id")

	res, err := s.fileService.ResolveFile(c, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
