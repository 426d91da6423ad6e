package repository

import (
	"Bazaar/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

type MessageRepo interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessageById(ctx context.Context, id uint64) (*model.Message, error)
	MarkRead(ctx context.Context, id uint64) (int64, error)
	CountUnread(ctx context.Context, senderID uint64, recipientID uint64) (int64, error)
	ListBetween(ctx context.Context, userID uint64, peerID uint64, beforeID uint64, limit int) ([]*model.Message, error)
	LastMessageBetween(ctx context.Context, userID uint64, peerID uint64) (*model.Message, error)
}

type MessageRepoImpl struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &MessageRepoImpl{db: db}
}

func (s *MessageRepoImpl) CreateMessage(ctx context.Context, msg *model.Message) error {
	result := s.db.WithContext(ctx).Create(msg)
	return result.Error
}

func (s *MessageRepoImpl) GetMessageById(ctx context.Context, id uint64) (*model.Message, error) {
	msg := &model.Message{}
	result := s.db.WithContext(ctx).First(msg, id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return msg, nil
}

// MarkRead 标记已读, 已读过的消息不会重复更新
func (s *MessageRepoImpl) MarkRead(ctx context.Context, id uint64) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", gorm.Expr("NOW()"))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (s *MessageRepoImpl) CountUnread(ctx context.Context, senderID uint64, recipientID uint64) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND read_at IS NULL", senderID, recipientID).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

func (s *MessageRepoImpl) ListBetween(ctx context.Context, userID uint64, peerID uint64, beforeID uint64, limit int) ([]*model.Message, error) {
	msgs := make([]*model.Message, 0)
	query := s.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, peerID, peerID, userID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	result := query.
		Order("id DESC").
		Limit(limit).
		Find(&msgs)
	if result.Error != nil {
		return nil, result.Error
	}
	return msgs, nil
}

func (s *MessageRepoImpl) LastMessageBetween(ctx context.Context, userID uint64, peerID uint64) (*model.Message, error) {
	msg := &model.Message{}
	result := s.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, peerID, peerID, userID).
		Order("id DESC").
		First(msg)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	return msg, nil
}
