package repository

import (
	"Bazaar/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type FileRepo interface {
	CreateFile(ctx context.Context, file *model.UploadedFile) error
	GetFileById(ctx context.Context, id string) (*model.UploadedFile, error)
	ListOrphansBefore(ctx context.Context, before time.Time) ([]*model.UploadedFile, error)
	DeleteFile(ctx context.Context, id string) error
}

type FileRepoImpl struct {
	db *gorm.DB
}

func NewFileRepo(db *gorm.DB) FileRepo {
	return &FileRepoImpl{db: db}
}

func (s *FileRepoImpl) CreateFile(ctx context.Context, file *model.UploadedFile) error {
	result := s.db.WithContext(ctx).Create(file)
	return result.Error
}

func (s *FileRepoImpl) GetFileById(ctx context.Context, id string) (*model.UploadedFile, error) {
	file := &model.UploadedFile{}
	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(file)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return file, nil
}

// ListOrphansBefore 找出早于给定时间且从未被消息引用的文件
func (s *FileRepoImpl) ListOrphansBefore(ctx context.Context, before time.Time) ([]*model.UploadedFile, error) {
	files := make([]*model.UploadedFile, 0)
	result := s.db.WithContext(ctx).
		Joins("LEFT JOIN messages ON messages.file_id = uploaded_files.id").
		Where("messages.id IS NULL AND uploaded_files.created_at < ?", before).
		Find(&files)
	if result.Error != nil {
		return nil, result.Error
	}
	return files, nil
}

func (s *FileRepoImpl) DeleteFile(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.UploadedFile{})
	return result.Error
}
