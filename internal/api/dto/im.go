package dto

import (
	"fmt"

	"github.com/goccy/go-json"
)

// MsgType 聊天协议消息类型枚举，收发两端共用同一套编号，
// 客户端根据 msg_type 字段做一次 switch 即可完成解码
type MsgType int

const (
	MsgTypeWentOnline MsgType = iota + 1 // 1 仅服务端下发
	MsgTypeWentOffline
	MsgTypeTextMessage
	MsgTypeFileMessage
	MsgTypeIsTyping
	MsgTypeMessageRead
	MsgTypeErrorOccurred
	MsgTypeMessageIdCreated
	MsgTypeNewUnreadCount
	MsgTypeTypingStopped
	MsgTypeCallMessage
	MsgTypeCallMessageOffer
	MsgTypeCallMessageAnswer
	MsgTypeCallMessageCandidate
	MsgTypeCallMessageReject
)

// Valid 判断数值是否落在已注册的消息类型区间内
func (t MsgType) Valid() bool {
	return t >= MsgTypeWentOnline && t <= MsgTypeCallMessageReject
}

// ChatErrorKind 聊天校验错误分类
type ChatErrorKind int

const (
	ErrKindMessageParsing ChatErrorKind = iota + 1
	ErrKindInvalidUserPk
	ErrKindInvalidMessageReadId
	ErrKindFileDoesNotExist
	ErrKindFileMessageInvalid
)

// ChatError 带分类的聊天校验错误，上线即以 [kind, detail] 二元组编码回发给发起连接
type ChatError struct {
	Kind   ChatErrorKind
	Detail string
}

func NewChatError(kind ChatErrorKind, detail string) *ChatError {
	return &ChatError{Kind: kind, Detail: detail}
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("chat error %d: %s", e.Kind, e.Detail)
}

// MarshalJSON 按线上协议编码为 [kind, detail]
func (e ChatError) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{int(e.Kind), e.Detail})
}

// UnmarshalJSON 从 [kind, detail] 二元组还原
func (e *ChatError) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	var kind int
	if err := json.Unmarshal(tuple[0], &kind); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[1], &e.Detail); err != nil {
		return err
	}
	e.Kind = ChatErrorKind(kind)
	return nil
}

// UserRef 呼叫信令中附带的发起方公开信息
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// -------- 入站帧 --------
// 字段使用指针以区分"缺失"与"零值"，类型不匹配由解码错误兜底

// InboundTextMessage 文本消息帧
type InboundTextMessage struct {
	Text     *string `json:"text"`
	UserPk   *string `json:"user_pk"`
	RandomID *string `json:"random_id"`
}

// InboundMessageRead 已读回执帧
type InboundMessageRead struct {
	UserPk    *string `json:"user_pk"`
	MessageID *string `json:"message_id"`
}

// InboundFileMessage 文件消息帧
type InboundFileMessage struct {
	FileID   *string `json:"file_id"`
	UserPk   *string `json:"user_pk"`
	RandomID *string `json:"random_id"`
}

// InboundIsTyping 输入状态帧，typing 缺省视为 true
type InboundIsTyping struct {
	Typing *bool `json:"typing"`
}

// InboundCallMessage 呼叫消息帧
type InboundCallMessage struct {
	UserPk   *string `json:"user_pk"`
	RandomID *string `json:"random_id"`
}

// InboundCallSignal 呼叫信令帧（offer/answer/candidate 三者共用结构）
type InboundCallSignal struct {
	UserPk    *string         `json:"user_pk"`
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
}

// InboundCallReject 拒接帧
type InboundCallReject struct {
	UserPk *string `json:"user_pk"`
	Reason *string `json:"reason"`
}

// -------- 出站事件 --------
// 每种事件只有一种线上编码，构造函数负责打上对应的 msg_type

// EventWentOnline 用户上线通知
type EventWentOnline struct {
	MsgType MsgType `json:"msg_type"`
	UserPk  string  `json:"user_pk"`
}

func NewEventWentOnline(userPk string) *EventWentOnline {
	return &EventWentOnline{MsgType: MsgTypeWentOnline, UserPk: userPk}
}

// EventWentOffline 用户下线通知
type EventWentOffline struct {
	MsgType MsgType `json:"msg_type"`
	UserPk  string  `json:"user_pk"`
}

func NewEventWentOffline(userPk string) *EventWentOffline {
	return &EventWentOffline{MsgType: MsgTypeWentOffline, UserPk: userPk}
}

// EventNewTextMessage 文本消息预投递事件，random_id 为发送端本地占位号
type EventNewTextMessage struct {
	MsgType    MsgType `json:"msg_type"`
	RandomID   string  `json:"random_id"`
	Text       string  `json:"text"`
	Sender     string  `json:"sender"`
	Receiver   string  `json:"receiver"`
	SenderName string  `json:"sender_name"`
}

func NewEventNewTextMessage(randomID, text, sender, receiver, senderName string) *EventNewTextMessage {
	return &EventNewTextMessage{
		MsgType:    MsgTypeTextMessage,
		RandomID:   randomID,
		Text:       text,
		Sender:     sender,
		Receiver:   receiver,
		SenderName: senderName,
	}
}

// EventNewFileMessage 文件消息事件
type EventNewFileMessage struct {
	MsgType    MsgType  `json:"msg_type"`
	DbID       uint64   `json:"db_id"`
	File       *FileDTO `json:"file"`
	Sender     string   `json:"sender"`
	Receiver   string   `json:"receiver"`
	SenderName string   `json:"sender_name"`
}

func NewEventNewFileMessage(dbID uint64, file *FileDTO, sender, receiver, senderName string) *EventNewFileMessage {
	return &EventNewFileMessage{
		MsgType:    MsgTypeFileMessage,
		DbID:       dbID,
		File:       file,
		Sender:     sender,
		Receiver:   receiver,
		SenderName: senderName,
	}
}

// EventIsTyping 正在输入事件
type EventIsTyping struct {
	MsgType MsgType `json:"msg_type"`
	UserPk  string  `json:"user_pk"`
	Typing  bool    `json:"typing"`
}

func NewEventIsTyping(userPk string, typing bool) *EventIsTyping {
	return &EventIsTyping{MsgType: MsgTypeIsTyping, UserPk: userPk, Typing: typing}
}

// EventStoppedTyping 停止输入事件
type EventStoppedTyping struct {
	MsgType MsgType `json:"msg_type"`
	UserPk  string  `json:"user_pk"`
}

func NewEventStoppedTyping(userPk string) *EventStoppedTyping {
	return &EventStoppedTyping{MsgType: MsgTypeTypingStopped, UserPk: userPk}
}

// EventMessageRead 已读确认事件，sender 为消息作者，receiver 为标记方
type EventMessageRead struct {
	MsgType   MsgType `json:"msg_type"`
	MessageID string  `json:"message_id"`
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
}

func NewEventMessageRead(messageID, sender, receiver string) *EventMessageRead {
	return &EventMessageRead{MsgType: MsgTypeMessageRead, MessageID: messageID, Sender: sender, Receiver: receiver}
}

// EventError 校验错误事件，仅回发给发起连接
type EventError struct {
	MsgType MsgType   `json:"msg_type"`
	Error   ChatError `json:"error"`
}

func NewEventError(cerr *ChatError) *EventError {
	return &EventError{MsgType: MsgTypeErrorOccurred, Error: *cerr}
}

// EventMessageIdCreated 落库确认事件，把本地占位号映射到持久化 ID
type EventMessageIdCreated struct {
	MsgType  MsgType `json:"msg_type"`
	RandomID string  `json:"random_id"`
	DbID     uint64  `json:"db_id"`
}

func NewEventMessageIdCreated(randomID string, dbID uint64) *EventMessageIdCreated {
	return &EventMessageIdCreated{MsgType: MsgTypeMessageIdCreated, RandomID: randomID, DbID: dbID}
}

// EventNewUnreadCount 未读数刷新事件，sender 为产生未读的那一侧
type EventNewUnreadCount struct {
	MsgType     MsgType `json:"msg_type"`
	Sender      string  `json:"sender"`
	UnreadCount int64   `json:"unread_count"`
}

func NewEventNewUnreadCount(sender string, unreadCount int64) *EventNewUnreadCount {
	return &EventNewUnreadCount{MsgType: MsgTypeNewUnreadCount, Sender: sender, UnreadCount: unreadCount}
}

// EventNewCallMessage 呼叫记录事件，正文固定为空串
type EventNewCallMessage struct {
	MsgType    MsgType `json:"msg_type"`
	RandomID   string  `json:"random_id"`
	Text       string  `json:"text"`
	IsCall     bool    `json:"is_call"`
	Sender     string  `json:"sender"`
	Receiver   string  `json:"receiver"`
	SenderName string  `json:"sender_name"`
}

func NewEventNewCallMessage(randomID, sender, receiver, senderName string) *EventNewCallMessage {
	return &EventNewCallMessage{
		MsgType:    MsgTypeCallMessage,
		RandomID:   randomID,
		Text:       "",
		IsCall:     true,
		Sender:     sender,
		Receiver:   receiver,
		SenderName: senderName,
	}
}

// EventCallOffer 呼叫 offer 信令中转
type EventCallOffer struct {
	MsgType  MsgType         `json:"msg_type"`
	Type     string          `json:"type"`
	Offer    json.RawMessage `json:"offer"`
	FromUser UserRef         `json:"from_user"`
}

func NewEventCallOffer(offer json.RawMessage, from UserRef) *EventCallOffer {
	return &EventCallOffer{MsgType: MsgTypeCallMessageOffer, Type: "offer", Offer: offer, FromUser: from}
}

// EventCallAnswer 呼叫 answer 信令中转
type EventCallAnswer struct {
	MsgType  MsgType         `json:"msg_type"`
	Type     string          `json:"type"`
	Answer   json.RawMessage `json:"answer"`
	FromUser UserRef         `json:"from_user"`
}

func NewEventCallAnswer(answer json.RawMessage, from UserRef) *EventCallAnswer {
	return &EventCallAnswer{MsgType: MsgTypeCallMessageAnswer, Type: "answer", Answer: answer, FromUser: from}
}

// EventCallCandidate 呼叫 candidate 信令中转
type EventCallCandidate struct {
	MsgType   MsgType         `json:"msg_type"`
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
	FromUser  UserRef         `json:"from_user"`
}

func NewEventCallCandidate(candidate json.RawMessage, from UserRef) *EventCallCandidate {
	return &EventCallCandidate{MsgType: MsgTypeCallMessageCandidate, Type: "candidate", Candidate: candidate, FromUser: from}
}

// EventCallReject 拒接信令中转
type EventCallReject struct {
	MsgType  MsgType `json:"msg_type"`
	Reason   *string `json:"reason"`
	FromUser UserRef `json:"from_user"`
}

func NewEventCallReject(reason *string, from UserRef) *EventCallReject {
	return &EventCallReject{MsgType: MsgTypeCallMessageReject, Reason: reason, FromUser: from}
}
