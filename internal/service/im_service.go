package service

import (
	"Bazaar/internal/api/dto"
	"Bazaar/internal/model"
	"Bazaar/internal/pkg/consts"
	"Bazaar/internal/pkg/mongo"
	"Bazaar/internal/repository"
	"context"
	log "log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jinzhu/copier"
)

// ChatService 聊天数据访问接口：连接 Actor 与 HTTP 接口共用
type ChatService interface {
	ResolveUser(ctx context.Context, id uint64) (*model.User, error)
	DialogPartners(ctx context.Context, userID uint64) ([]uint64, error)
	SaveTextMessage(ctx context.Context, senderID, recipientID uint64, text string) (*model.Message, error)
	SaveCallMessage(ctx context.Context, senderID, recipientID uint64) (*model.Message, error)
	UnreadCount(ctx context.Context, senderID, recipientID uint64) (int64, error)
	GetMessage(ctx context.Context, id uint64) (*model.Message, error)
	MarkMessageRead(ctx context.Context, id uint64) error
	MessageHistory(ctx context.Context, userID, dialogWith, lastID uint64, pageSize int) ([]*dto.ChatMessageDTO, error)
	DialogList(ctx context.Context, userID uint64) ([]*dto.DialogDTO, error)
	SelfInfo(ctx context.Context, userID uint64) (*dto.SelfInfoDTO, error)
	UserDirectory(ctx context.Context, userID uint64, query string) ([]*dto.ChatUserDTO, error)
	Close()
}

type chatServiceImpl struct {
	userRepo    repository.UserRepo
	messageRepo repository.MessageRepo
	dialogRepo  repository.DialogRepo
	archiveRepo mongo.ArchiveRepo
	retryChan   chan *mongo.ArchivedMessage
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

// NewChatService 构造函数：初始化服务并启动异步归档工作池
func NewChatService(
	userRepo repository.UserRepo,
	messageRepo repository.MessageRepo,
	dialogRepo repository.DialogRepo,
	archiveRepo mongo.ArchiveRepo,
	archiveWorkers int,
) ChatService {
	s := &chatServiceImpl{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		dialogRepo:  dialogRepo,
		archiveRepo: archiveRepo,
		retryChan:   make(chan *mongo.ArchivedMessage, 2048),
		stopChan:    make(chan struct{}),
	}

	s.wg.Add(archiveWorkers)
	for i := 0; i < archiveWorkers; i++ {
		go s.archiveWorker()
	}

	return s
}

func (s *chatServiceImpl) ResolveUser(ctx context.Context, id uint64) (*model.User, error) {
	return s.userRepo.GetUserById(ctx, id)
}

// DialogPartners 枚举用户所有会话对端的 ID
func (s *chatServiceImpl) DialogPartners(ctx context.Context, userID uint64) ([]uint64, error) {
	dialogs, err := s.dialogRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	partners := make([]uint64, 0, len(dialogs))
	for _, d := range dialogs {
		if d.UserAID == userID {
			partners = append(partners, d.UserBID)
		} else {
			partners = append(partners, d.UserAID)
		}
	}
	return partners, nil
}

func (s *chatServiceImpl) SaveTextMessage(ctx context.Context, senderID, recipientID uint64, text string) (*model.Message, error) {
	return s.saveMessage(ctx, &model.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Kind:        model.MessageKindText,
		Text:        text,
	})
}

// SaveCallMessage 落一条空正文的呼叫记录
func (s *chatServiceImpl) SaveCallMessage(ctx context.Context, senderID, recipientID uint64) (*model.Message, error) {
	return s.saveMessage(ctx, &model.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Kind:        model.MessageKindCall,
	})
}

// saveMessage MySQL 落库定 ID，随后保证会话行存在并异步镜像进 MongoDB
func (s *chatServiceImpl) saveMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := s.messageRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.dialogRepo.EnsureDialog(ctx, msg.SenderID, msg.RecipientID); err != nil {
		log.Error("保证会话存在失败", "sender", msg.SenderID, "recipient", msg.RecipientID, "err", err)
	}

	doc := s.toArchived(msg)
	writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.archiveRepo.SaveMessage(writeCtx, doc); err != nil {
		select {
		case s.retryChan <- doc:
		default:
		}
	}

	return msg, nil
}

func (s *chatServiceImpl) UnreadCount(ctx context.Context, senderID, recipientID uint64) (int64, error) {
	return s.messageRepo.CountUnread(ctx, senderID, recipientID)
}

func (s *chatServiceImpl) GetMessage(ctx context.Context, id uint64) (*model.Message, error) {
	return s.messageRepo.GetMessageById(ctx, id)
}

// MarkMessageRead 标记已读，重复标记静默成功
func (s *chatServiceImpl) MarkMessageRead(ctx context.Context, id uint64) error {
	_, err := s.messageRepo.MarkRead(ctx, id)
	return err
}

// MessageHistory 历史消息走 MongoDB 归档
func (s *chatServiceImpl) MessageHistory(ctx context.Context, userID, dialogWith, lastID uint64, pageSize int) ([]*dto.ChatMessageDTO, error) {
	if pageSize <= 0 {
		pageSize = consts.ChatHistoryPageSize
	}
	docs, err := s.archiveRepo.History(ctx, userID, dialogWith, lastID, pageSize)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ChatMessageDTO, 0, len(docs))
	for _, d := range docs {
		item := &dto.ChatMessageDTO{
			ID:        d.ID,
			Sender:    strconv.FormatUint(d.SenderID, 10),
			Recipient: strconv.FormatUint(d.RecipientID, 10),
			Kind:      d.Kind,
			Text:      d.Text,
			Out:       d.SenderID == userID,
			CreatedAt: d.CreatedAt,
		}
		res = append(res, item)
	}
	return res, nil
}

// DialogList 会话列表：对端信息 + 未读数 + 最后一条消息
func (s *chatServiceImpl) DialogList(ctx context.Context, userID uint64) ([]*dto.DialogDTO, error) {
	partners, err := s.DialogPartners(ctx, userID)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.GetUserByIds(ctx, partners)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	res := make([]*dto.DialogDTO, 0, len(partners))
	for _, pid := range partners {
		u, ok := byID[pid]
		if !ok {
			continue
		}

		unread, err := s.messageRepo.CountUnread(ctx, pid, userID)
		if err != nil {
			return nil, err
		}

		d := &dto.DialogDTO{
			PartnerID:       strconv.FormatUint(pid, 10),
			PartnerUsername: u.Username,
			PartnerName:     u.Name,
			UnreadCount:     unread,
		}

		last, err := s.messageRepo.LastMessageBetween(ctx, userID, pid)
		if err != nil {
			return nil, err
		}
		if last != nil {
			d.LastMessage = last.Text
			d.LastMessageAt = last.CreatedAt
		}
		res = append(res, d)
	}
	return res, nil
}

func (s *chatServiceImpl) SelfInfo(ctx context.Context, userID uint64) (*dto.SelfInfoDTO, error) {
	user, err := s.userRepo.GetUserById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return &dto.SelfInfoDTO{
		Pk:       strconv.FormatUint(user.ID, 10),
		Username: user.Username,
	}, nil
}

// UserDirectory 用户目录，query 非空时按姓名/邮箱模糊过滤，结果不含自己
func (s *chatServiceImpl) UserDirectory(ctx context.Context, userID uint64, query string) ([]*dto.ChatUserDTO, error) {
	var users []*model.User
	var err error
	if query != "" {
		users, err = s.userRepo.SearchUsers(ctx, query)
	} else {
		users, err = s.userRepo.ListUsers(ctx)
	}
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ChatUserDTO, 0, len(users))
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		item := &dto.ChatUserDTO{}
		if err := copier.Copy(item, u); err != nil {
			return nil, err
		}
		item.ID = strconv.FormatUint(u.ID, 10)
		res = append(res, item)
	}
	return res, nil
}

func (s *chatServiceImpl) Close() {
	close(s.stopChan)
	s.wg.Wait()
	log.Info("ChatService shut down gracefully")
}

// archiveWorker 归档补偿：首写失败的文档在这里有限次重试
func (s *chatServiceImpl) archiveWorker() {
	defer s.wg.Done()
	for {
		select {
		case doc := <-s.retryChan:
			backoff := time.Second
			for i := 0; i < 3; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := s.archiveRepo.SaveMessage(ctx, doc)
				cancel()
				if err == nil {
					break
				}
				time.Sleep(backoff)
				backoff *= 2
			}
		case <-s.stopChan:
			return
		}
	}
}

func (s *chatServiceImpl) toArchived(msg *model.Message) *mongo.ArchivedMessage {
	doc := &mongo.ArchivedMessage{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Kind:        msg.KindName(),
		Text:        msg.Text,
		CreatedAt:   msg.CreatedAt,
	}
	if msg.FileID != nil {
		doc.FileID = *msg.FileID
	}
	return doc
}
