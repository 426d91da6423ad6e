package repository

import (
	"Bazaar/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DialogRepo interface {
	EnsureDialog(ctx context.Context, u1 uint64, u2 uint64) error
	ListByUser(ctx context.Context, userID uint64) ([]*model.Dialog, error)
}

type DialogRepoImpl struct {
	db *gorm.DB
}

func NewDialogRepo(db *gorm.DB) DialogRepo {
	return &DialogRepoImpl{db: db}
}

// EnsureDialog 保证会话存在, 重复创建直接忽略
func (s *DialogRepoImpl) EnsureDialog(ctx context.Context, u1 uint64, u2 uint64) error {
	a, b := model.OrderedPair(u1, u2)
	dialog := &model.Dialog{UserAID: a, UserBID: b}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(dialog)
	return result.Error
}

func (s *DialogRepoImpl) ListByUser(ctx context.Context, userID uint64) ([]*model.Dialog, error) {
	dialogs := make([]*model.Dialog, 0)
	result := s.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("id DESC").
		Find(&dialogs)
	if result.Error != nil {
		return nil, result.Error
	}
	return dialogs, nil
}
