package service

import (
	"Bazaar/internal/api/config"
	"Bazaar/internal/api/dto"
	"Bazaar/internal/model"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// ChatConsumer 每条 WebSocket 连接一个实例，独占持有连接的读写两端。
// 连接期字段在构造时写入，之后只读，连接之间不共享任何可变状态
type ChatConsumer struct {
	conn   *websocket.Conn
	groups GroupLayer
	chat   ChatService
	cfg    *config.ChatConfig

	userID   uint64
	selfPk   string
	selfName string
	selfRef  dto.UserRef

	send chan []byte
	done chan struct{}
}

func NewChatConsumer(conn *websocket.Conn, groups GroupLayer, chat ChatService, cfg *config.ChatConfig, user *model.User) *ChatConsumer {
	name := user.Name
	if name == "" {
		name = user.Username
	}
	pk := strconv.FormatUint(user.ID, 10)
	return &ChatConsumer{
		conn:     conn,
		groups:   groups,
		chat:     chat,
		cfg:      cfg,
		userID:   user.ID,
		selfPk:   pk,
		selfName: name,
		selfRef: dto.UserRef{
			ID:    pk,
			Name:  name,
			Email: user.Email,
		},
		send: make(chan []byte, cfg.SendQueueSize),
		done: make(chan struct{}),
	}
}

// Run 驱动连接的整个生命周期：进组、上线广播、收发循环、下线清理。
// 阻塞直到对端断开或订阅失效
func (c *ChatConsumer) Run(ctx context.Context) {
	sub, err := c.groups.Join(ctx, UserGroup(c.userID))
	if err != nil {
		log.Error("加入身份群组失败", "userID", c.userID, "err", err)
		return
	}

	go c.writeLoop()
	go c.pumpGroup(sub)

	log.Info("聊天连接已建立", "userID", c.userID)
	c.announcePresence(ctx, true)

	c.readLoop(ctx)

	_ = sub.Close()
	close(c.done)
	c.announcePresence(context.Background(), false)
	log.Info("聊天连接已断开", "userID", c.userID)
}

// readLoop 逐帧读取并分发，校验失败只回发错误帧，连接保持存活
func (c *ChatConsumer) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if cerr := c.dispatch(ctx, data); cerr != nil {
			c.sendError(cerr)
		}
	}
}

// writeLoop 唯一的 socket 写方，群组广播与错误帧都经由 send 队列串行写出
func (c *ChatConsumer) writeLoop() {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warn("消息推送失败", "userID", c.userID, "err", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// pumpGroup 把身份群组的广播原样转入发送队列
func (c *ChatConsumer) pumpGroup(sub GroupSub) {
	for payload := range sub.Events() {
		select {
		case c.send <- payload:
		case <-c.done:
			return
		}
	}
}

// dispatch 按 msg_type 分发入站帧。
// 服务端专属类型收到即忽略，未知类型与结构错误统一回 MessageParsingError
func (c *ChatConsumer) dispatch(ctx context.Context, data []byte) *dto.ChatError {
	var env struct {
		MsgType json.RawMessage `json:"msg_type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return dto.NewChatError(dto.ErrKindMessageParsing, "invalid message")
	}
	if len(env.MsgType) == 0 {
		return dto.NewChatError(dto.ErrKindMessageParsing, "msg_type not present in message")
	}
	var kind int
	if err := json.Unmarshal(env.MsgType, &kind); err != nil {
		return dto.NewChatError(dto.ErrKindMessageParsing, "msg_type is not an integer")
	}

	switch dto.MsgType(kind) {
	case dto.MsgTypeWentOnline, dto.MsgTypeWentOffline,
		dto.MsgTypeMessageIdCreated, dto.MsgTypeErrorOccurred,
		dto.MsgTypeNewUnreadCount:
		// 服务端下行专用，客户端不应上送
		return nil
	case dto.MsgTypeTextMessage:
		return c.handleTextMessage(ctx, data)
	case dto.MsgTypeFileMessage:
		return c.handleFileMessage(ctx, data)
	case dto.MsgTypeIsTyping:
		return c.handleIsTyping(ctx, data)
	case dto.MsgTypeTypingStopped:
		return c.handleTypingStopped(ctx)
	case dto.MsgTypeMessageRead:
		return c.handleMessageRead(ctx, data)
	case dto.MsgTypeCallMessage:
		return c.handleCallMessage(ctx, data)
	case dto.MsgTypeCallMessageOffer, dto.MsgTypeCallMessageAnswer, dto.MsgTypeCallMessageCandidate:
		return c.handleCallSignal(ctx, dto.MsgType(kind), data)
	case dto.MsgTypeCallMessageReject:
		return c.handleCallReject(ctx, data)
	default:
		return dto.NewChatError(dto.ErrKindMessageParsing,
			fmt.Sprintf("msg_type %d is not supported", kind))
	}
}

// handleTextMessage 文本消息：先对目标群组做抢先广播降低感知延迟，
// 落库成功后再把占位号到持久化 ID 的映射发给双方
func (c *ChatConsumer) handleTextMessage(ctx context.Context, data []byte) *dto.ChatError {
	var frame dto.InboundTextMessage
	if cerr := decodeFrame(data, &frame); cerr != nil {
		return cerr
	}

	targetID, cerr := validateTargetPk(frame.UserPk)
	if cerr != nil {
		return cerr
	}
	text, cerr := validateText(frame.Text, c.cfg.TextMaxLength)
	if cerr != nil {
		return cerr
	}
	randomID, cerr := validateRandomID(frame.RandomID)
	if cerr != nil {
		return cerr
	}

	targetGroup := UserGroup(targetID)
	targetPk := strconv.FormatUint(targetID, 10)

	if targetID != c.userID {
		c.publish(ctx, targetGroup,
			dto.NewEventNewTextMessage(randomID, text, c.selfPk, targetPk, c.selfName))
	}

	target, err := c.chat.ResolveUser(ctx, targetID)
	if err != nil {
		log.Error("解析目标用户失败", "target", targetID, "err", err)
		return nil
	}
	if target == nil {
		return dto.NewChatError(dto.ErrKindInvalidUserPk,
			fmt.Sprintf("User with pk %d does not exist", targetID))
	}

	msg, err := c.chat.SaveTextMessage(ctx, c.userID, targetID, text)
	if err != nil {
		log.Error("文本消息落库失败", "sender", c.userID, "target", targetID, "err", err)
		return nil
	}

	idCreated := dto.NewEventMessageIdCreated(randomID, msg.ID)
	c.publish(ctx, targetGroup, idCreated)
	if targetID != c.userID {
		c.publish(ctx, UserGroup(c.userID), idCreated)

		unread, err := c.chat.UnreadCount(ctx, c.userID, targetID)
		if err != nil {
			log.Error("计算未读数失败", "sender", c.userID, "recipient", targetID, "err", err)
			return nil
		}
		c.publish(ctx, targetGroup, dto.NewEventNewUnreadCount(c.selfPk, unread))
	}
	return nil
}

// handleFileMessage 文件消息端到端链路尚未接通，这里只做结构校验。
// TODO: 落库并广播 EventNewFileMessage，与 HTTP 上传接口打通
func (c *ChatConsumer) handleFileMessage(_ context.Context, data []byte) *dto.ChatError {
	var frame dto.InboundFileMessage
	if cerr := decodeFrame(data, &frame); cerr != nil {
		return cerr
	}
	return nil
}

// handleIsTyping 输入状态对所有会话对端广播，尽力而为
func (c *ChatConsumer) handleIsTyping(ctx context.Context, data []byte) *dto.ChatError {
	var frame dto.InboundIsTyping
	if cerr := decodeFrame(data, &frame); cerr != nil {
		return cerr
	}
	typing := true
	if frame.Typing != nil {
		typing = *frame.Typing
	}
	c.broadcastToPartners(ctx, dto.NewEventIsTyping(c.selfPk, typing))
	return nil
}

func (c *ChatConsumer) handleTypingStopped(ctx context.Context) *dto.ChatError {
	c.broadcastToPartners(ctx, dto.NewEventStoppedTyping(c.selfPk))
	return nil
}

// handleMessageRead 已读回执：先给消息作者发确认，再幂等落库，最后刷新自己的未读数
func (c *ChatConsumer) handleMessageRead(ctx context.Context, data []byte) *dto.ChatError {
	var frame dto.InboundMessageRead
	if cerr := decodeFrame(data, &frame); cerr != nil {
		return cerr
	}

	targetID, cerr := validateTargetPk(frame.UserPk)
	if cerr != nil {
		return cerr
	}
	messageID, cerr := validateMessageID(frame.MessageID)
	if cerr != nil {
		return cerr
	}

	targetGroup := UserGroup(targetID)
	targetPk := strconv.FormatUint(targetID, 10)

	if targetID != c.userID {
		c.publish(ctx, targetGroup,
			dto.NewEventMessageRead(strconv.FormatUint(messageID, 10), targetPk, c.selfPk))
	}

	msg, err := c.chat.GetMessage(ctx, messageID)
	if err != nil {
		log.Error("查询消息失败", "messageID", messageID, "err", err)
		return nil
	}
	if msg == nil {
		return dto.NewChatError(dto.ErrKindInvalidMessageReadId,
			fmt.Sprintf("Message with id %d does not exist", messageID))
	}
	// 只能标记发给自己的消息，且作者必须与 user_pk 一致
	if msg.RecipientID != c.userID || msg.SenderID != targetID {
		return dto.NewChatError(dto.ErrKindInvalidMessageReadId,
			fmt.Sprintf("Message with id %d does not exist", messageID))
	}

	if err := c.chat.MarkMessageRead(ctx, messageID); err != nil {
		log.Error("标记已读失败", "messageID", messageID, "err", err)
		return nil
	}

	if targetID != c.userID {
		unread, err := c.chat.UnreadCount(ctx, targetID, c.userID)
		if err != nil {
			log.Error("计算未读数失败", "sender", targetID, "recipient", c.userID, "err", err)
			return nil
		}
		c.publish(ctx, UserGroup(c.userID), dto.NewEventNewUnreadCount(targetPk, unread))
	}
	return nil
}

// handleCallMessage 呼叫记录：发给自己是静默空操作，否则按文本消息同样的
// 抢先广播-落库-确认次序走一遍，正文固定为空
func (c *ChatConsumer) handleCallMessage(ctx context.Context, data []byte) *dto.ChatError {
	var frame dto.InboundCallMessage
	if cerr := decodeFrame(data, &frame); cerr != nil {
		return cerr
	}

	targetID, cerr := validateTargetPk(frame.UserPk)
	if cerr != nil {
		return cerr
	}
	randomID, cerr := validateRandomID(frame.RandomID)
	if cerr != nil {
		return cerr
	}
	if targetID == c.userID {
		return nil
	}

	targetGroup := UserGroup(targetID)
	targetPk := strconv.FormatUint(targetID, 10)

	c.publish(ctx, targetGroup,
		dto.NewEventNewCallMessage(randomID, c.selfPk, targetPk, c.selfName))

	target, err := c.chat.ResolveUser(ctx, targetID)
	if err != nil {
		log.Error("解析目标用户失败", "target", targetID, "err", err)
		return nil
	}
	if target == nil {
		return dto.NewChatError(dto.ErrKindInvalidUserPk,
			fmt.Sprintf("User with pk %d does not exist", targetID))
	}

	msg, err := c.chat.SaveCallMessage(ctx, c.userID, targetID)
	if err != nil {
		log.Error("呼叫记录落库失败", "sender", c.userID, "target", targetID, "err", err)
		return nil
	}

	idCreated := dto.NewEventMessageIdCreated(randomID, msg.ID)
	c.publish(ctx, targetGroup, idCreated)
	c.publish(ctx, UserGroup(c.userID), idCreated)

	unread, err := c.chat.UnreadCount(ctx, c.userID, targetID)
	if err != nil {
		log.Error("计算未读数失败", "sender", c.userID, "recipient", targetID, "err", err)
		return nil
	}
	c.publish(ctx, targetGroup, dto.NewEventNewUnreadCount(c.selfPk, unread))
	return nil
}

// handleCallSignal offer/answer/candidate 信令中转，载荷原样透传并附上发起方信息
func (c *ChatConsumer) handleCallSignal(ctx context.Context, kind dto.MsgType, data []byte) *dto.ChatError {
	var frame dto.InboundCallSignal
	if cerr := decodeFrame(data, &frame); cerr != nil {
		return cerr
	}

	targetID, cerr := validateTargetPk(frame.UserPk)
	if cerr != nil {
		return cerr
	}

	var event interface{}
	switch kind {
	case dto.MsgTypeCallMessageOffer:
		payload, cerr := validateSignalPayload(frame.Offer, "offer")
		if cerr != nil {
			return cerr
		}
		event = dto.NewEventCallOffer(payload, c.selfRef)
	case dto.MsgTypeCallMessageAnswer:
		payload, cerr := validateSignalPayload(frame.Answer, "answer")
		if cerr != nil {
			return cerr
		}
		event = dto.NewEventCallAnswer(payload, c.selfRef)
	default:
		payload, cerr := validateSignalPayload(frame.Candidate, "candidate")
		if cerr != nil {
			return cerr
		}
		event = dto.NewEventCallCandidate(payload, c.selfRef)
	}

	if targetID == c.userID {
		return nil
	}
	c.publish(ctx, UserGroup(targetID), event)
	return nil
}

func (c *ChatConsumer) handleCallReject(ctx context.Context, data []byte) *dto.ChatError {
	var frame dto.InboundCallReject
	if cerr := decodeFrame(data, &frame); cerr != nil {
		return cerr
	}

	targetID, cerr := validateTargetPk(frame.UserPk)
	if cerr != nil {
		return cerr
	}
	reason, cerr := validateReason(frame.Reason, c.cfg.RejectReasonMaxLength)
	if cerr != nil {
		return cerr
	}

	if targetID == c.userID {
		return nil
	}
	c.publish(ctx, UserGroup(targetID), dto.NewEventCallReject(reason, c.selfRef))
	return nil
}

// announcePresence 向除自己外的所有会话对端群组广播上下线
func (c *ChatConsumer) announcePresence(ctx context.Context, online bool) {
	partners, err := c.chat.DialogPartners(ctx, c.userID)
	if err != nil {
		log.Error("枚举会话对端失败", "userID", c.userID, "err", err)
		return
	}
	for _, pid := range partners {
		if pid == c.userID {
			continue
		}
		if online {
			c.publish(ctx, UserGroup(pid), dto.NewEventWentOnline(c.selfPk))
		} else {
			c.publish(ctx, UserGroup(pid), dto.NewEventWentOffline(c.selfPk))
		}
	}
}

// broadcastToPartners 对所有会话对端群组广播同一事件
func (c *ChatConsumer) broadcastToPartners(ctx context.Context, event interface{}) {
	partners, err := c.chat.DialogPartners(ctx, c.userID)
	if err != nil {
		log.Error("枚举会话对端失败", "userID", c.userID, "err", err)
		return
	}
	for _, pid := range partners {
		if pid == c.userID {
			continue
		}
		c.publish(ctx, UserGroup(pid), event)
	}
}

func (c *ChatConsumer) publish(ctx context.Context, group string, event interface{}) {
	if err := c.groups.Publish(ctx, group, event); err != nil {
		log.Error("群组广播失败", "group", group, "err", err)
	}
}

// sendError 错误帧只回发给发起连接本身，不经过群组
func (c *ChatConsumer) sendError(cerr *dto.ChatError) {
	payload, err := json.Marshal(dto.NewEventError(cerr))
	if err != nil {
		log.Error("错误帧编码失败", "err", err)
		return
	}
	select {
	case c.send <- payload:
	case <-c.done:
	}
}

// decodeFrame 解码入站帧，类型不匹配映射为带字段名的解析错误
func decodeFrame(data []byte, dst interface{}) *dto.ChatError {
	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return dto.NewChatError(dto.ErrKindMessageParsing, "'"+typeErr.Field+"' error")
		}
		return dto.NewChatError(dto.ErrKindMessageParsing, "invalid message")
	}
	return nil
}
