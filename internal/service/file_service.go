package service

import (
	"Bazaar/internal/api/dto"
	"Bazaar/internal/model"
	"Bazaar/internal/pkg/minio"
	"Bazaar/internal/pkg/util"
	"Bazaar/internal/repository"
	"context"
	"fmt"
	log "log/slog"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// 单个聊天附件的大小上限
const maxUploadSize = 32 << 20

// FileService 聊天附件服务
type FileService interface {
	Upload(ctx context.Context, userID uint64, header *multipart.FileHeader) (*dto.FileDTO, error)
	ResolveFile(ctx context.Context, id string) (*dto.FileDTO, error)
	CleanupOrphans(ctx context.Context, olderThan time.Duration) (int, error)
}

type fileServiceImpl struct {
	fileRepo repository.FileRepo
}

func NewFileService(fileRepo repository.FileRepo) FileService {
	return &fileServiceImpl{fileRepo: fileRepo}
}

// Upload 附件先进 MinIO，再落元数据行，对象键带 uuid 防止重名覆盖
func (s *fileServiceImpl) Upload(ctx context.Context, userID uint64, header *multipart.FileHeader) (*dto.FileDTO, error) {
	if header.Size > maxUploadSize {
		return nil, ErrFileTooLarge
	}

	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = src.Close()
	}()

	id := uuid.NewString()
	objectKey := fmt.Sprintf("chat/%d/%s%s", userID, id, filepath.Ext(header.Filename))
	contentType := util.GetSafeContentType(header)

	if _, err := minio.UploadFile(ctx, objectKey, src, header.Size, contentType); err != nil {
		return nil, err
	}

	file := &model.UploadedFile{
		ID:           id,
		UploadedByID: userID,
		ObjectKey:    objectKey,
		OriginalName: header.Filename,
		ContentType:  contentType,
		Size:         header.Size,
	}
	if err := s.fileRepo.CreateFile(ctx, file); err != nil {
		// 元数据没落上就把对象清掉，不留孤儿
		_ = minio.DeleteFile(ctx, objectKey)
		return nil, err
	}

	return s.toFileDTO(file), nil
}

func (s *fileServiceImpl) ResolveFile(ctx context.Context, id string) (*dto.FileDTO, error) {
	file, err := s.fileRepo.GetFileById(ctx, id)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	return s.toFileDTO(file), nil
}

// CleanupOrphans 删除超过保留时长且从未被消息引用的附件，返回删除数量
func (s *fileServiceImpl) CleanupOrphans(ctx context.Context, olderThan time.Duration) (int, error) {
	orphans, err := s.fileRepo.ListOrphansBefore(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range orphans {
		if err := minio.DeleteFile(ctx, f.ObjectKey); err != nil {
			log.Warn("删除附件对象失败", "fileID", f.ID, "objectKey", f.ObjectKey, "err", err)
			continue
		}
		if err := s.fileRepo.DeleteFile(ctx, f.ID); err != nil {
			log.Warn("删除附件元数据失败", "fileID", f.ID, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *fileServiceImpl) toFileDTO(file *model.UploadedFile) *dto.FileDTO {
	return &dto.FileDTO{
		ID:           file.ID,
		URL:          minio.GetPublicURL(file.ObjectKey),
		OriginalName: file.OriginalName,
		Size:         file.Size,
		UploadedAt:   file.CreatedAt,
	}
}
