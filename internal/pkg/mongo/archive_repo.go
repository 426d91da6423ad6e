package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ArchiveRepo interface {
	SaveMessage(ctx context.Context, msg *ArchivedMessage) error
	History(ctx context.Context, userID, dialogWith, lastID uint64, pageSize int) ([]*ArchivedMessage, error)
}

type archiveRepoImpl struct {
	col *mongo.Collection
}

func NewArchiveRepo(db *mongo.Database) ArchiveRepo {
	return &archiveRepoImpl{
		col: db.Collection("message_archive"),
	}
}

// SaveMessage 以消息 ID 为主键 upsert，保证归档重试幂等
func (s *archiveRepoImpl) SaveMessage(ctx context.Context, msg *ArchivedMessage) error {
	filter := bson.M{"_id": msg.ID}
	_, err := s.col.ReplaceOne(ctx, filter, msg, options.Replace().SetUpsert(true))
	return err
}

// History 历史消息查询
// dialogWith 为 0 时返回用户参与的所有消息；lastID 为当前页面最旧一条消息的 ID，第一页传 0
func (s *archiveRepoImpl) History(ctx context.Context, userID, dialogWith, lastID uint64, pageSize int) ([]*ArchivedMessage, error) {
	var filter bson.M
	if dialogWith > 0 {
		filter = bson.M{"$or": bson.A{
			bson.M{"sender_id": userID, "recipient_id": dialogWith},
			bson.M{"sender_id": dialogWith, "recipient_id": userID},
		}}
	} else {
		filter = bson.M{"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"recipient_id": userID},
		}}
	}

	if lastID > 0 {
		filter["_id"] = bson.M{"$lt": lastID}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(pageSize))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*ArchivedMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}
