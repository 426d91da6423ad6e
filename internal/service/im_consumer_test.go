package service

import (
	"Bazaar/internal/api/config"
	"Bazaar/internal/api/dto"
	"Bazaar/internal/model"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

type recordedPub struct {
	group string
	data  []byte
}

// fakeGroupLayer 记录所有广播，便于断言次序与受众
type fakeGroupLayer struct {
	pubs []recordedPub
}

func (f *fakeGroupLayer) Join(_ context.Context, _ string) (GroupSub, error) {
	return nil, fmt.Errorf("not used in dispatch tests")
}

func (f *fakeGroupLayer) Publish(_ context.Context, group string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	f.pubs = append(f.pubs, recordedPub{group: group, data: data})
	return nil
}

func (f *fakeGroupLayer) kinds() []string {
	res := make([]string, 0, len(f.pubs))
	for _, p := range f.pubs {
		var env struct {
			MsgType int `json:"msg_type"`
		}
		_ = json.Unmarshal(p.data, &env)
		res = append(res, fmt.Sprintf("%s:%d", p.group, env.MsgType))
	}
	return res
}

// fakeChatService 内存实现,消息 ID 从 1 递增
type fakeChatService struct {
	users    map[uint64]*model.User
	partners map[uint64][]uint64
	messages map[uint64]*model.Message
	nextID   uint64
}

func newFakeChatService() *fakeChatService {
	return &fakeChatService{
		users:    make(map[uint64]*model.User),
		partners: make(map[uint64][]uint64),
		messages: make(map[uint64]*model.Message),
	}
}

func (f *fakeChatService) ResolveUser(_ context.Context, id uint64) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeChatService) DialogPartners(_ context.Context, userID uint64) ([]uint64, error) {
	return f.partners[userID], nil
}

func (f *fakeChatService) SaveTextMessage(_ context.Context, senderID, recipientID uint64, text string) (*model.Message, error) {
	f.nextID++
	msg := &model.Message{
		ID:          f.nextID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Kind:        model.MessageKindText,
		Text:        text,
		CreatedAt:   time.Now(),
	}
	f.messages[msg.ID] = msg
	return msg, nil
}

func (f *fakeChatService) SaveCallMessage(_ context.Context, senderID, recipientID uint64) (*model.Message, error) {
	f.nextID++
	msg := &model.Message{
		ID:          f.nextID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Kind:        model.MessageKindCall,
		CreatedAt:   time.Now(),
	}
	f.messages[msg.ID] = msg
	return msg, nil
}

func (f *fakeChatService) UnreadCount(_ context.Context, senderID, recipientID uint64) (int64, error) {
	var count int64
	for _, m := range f.messages {
		if m.SenderID == senderID && m.RecipientID == recipientID && m.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeChatService) GetMessage(_ context.Context, id uint64) (*model.Message, error) {
	return f.messages[id], nil
}

func (f *fakeChatService) MarkMessageRead(_ context.Context, id uint64) error {
	if m, ok := f.messages[id]; ok && m.ReadAt == nil {
		now := time.Now()
		m.ReadAt = &now
	}
	return nil
}

func (f *fakeChatService) MessageHistory(_ context.Context, _, _, _ uint64, _ int) ([]*dto.ChatMessageDTO, error) {
	return nil, nil
}

func (f *fakeChatService) DialogList(_ context.Context, _ uint64) ([]*dto.DialogDTO, error) {
	return nil, nil
}

func (f *fakeChatService) SelfInfo(_ context.Context, _ uint64) (*dto.SelfInfoDTO, error) {
	return nil, nil
}

func (f *fakeChatService) UserDirectory(_ context.Context, _ uint64, _ string) ([]*dto.ChatUserDTO, error) {
	return nil, nil
}

func (f *fakeChatService) Close() {}

func testChatConfig(maxLen int) *config.ChatConfig {
	cfg := &config.ChatConfig{TextMaxLength: maxLen}
	cfg.ApplyDefaults()
	cfg.TextMaxLength = maxLen
	return cfg
}

func newTestConsumer(svc ChatService, gl GroupLayer, user *model.User, maxLen int) *ChatConsumer {
	return NewChatConsumer(nil, gl, svc, testChatConfig(maxLen), user)
}

func seedUsers(svc *fakeChatService) {
	svc.users[1] = &model.User{ID: 1, Username: "alice", Name: "Alice", Email: "alice@example.com"}
	svc.users[2] = &model.User{ID: 2, Username: "bob", Name: "Bob", Email: "bob@example.com"}
	svc.users[3] = &model.User{ID: 3, Username: "carol", Name: "Carol", Email: "carol@example.com"}
}

func TestTextMessageBroadcastOrder(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	frame := `{"msg_type":3,"text":"hi","user_pk":"2","random_id":"-1"}`
	if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
		t.Fatalf("dispatch failed: %v", cerr)
	}

	want := []string{"2:3", "2:8", "1:8", "2:9"}
	got := gl.kinds()
	if len(got) != len(want) {
		t.Fatalf("broadcast sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("broadcast sequence = %v, want %v", got, want)
		}
	}

	// 抢先广播携带占位号,确认事件将其映射到持久化 ID
	var provisional dto.EventNewTextMessage
	if err := json.Unmarshal(gl.pubs[0].data, &provisional); err != nil {
		t.Fatalf("decode provisional: %v", err)
	}
	if provisional.RandomID != "-1" || provisional.Text != "hi" || provisional.Sender != "1" || provisional.SenderName != "Alice" {
		t.Fatalf("unexpected provisional event: %+v", provisional)
	}

	var created dto.EventMessageIdCreated
	if err := json.Unmarshal(gl.pubs[1].data, &created); err != nil {
		t.Fatalf("decode id created: %v", err)
	}
	if created.RandomID != "-1" || created.DbID != 1 {
		t.Fatalf("unexpected id mapping: %+v", created)
	}

	var unread dto.EventNewUnreadCount
	if err := json.Unmarshal(gl.pubs[3].data, &unread); err != nil {
		t.Fatalf("decode unread: %v", err)
	}
	if unread.Sender != "1" || unread.UnreadCount != 1 {
		t.Fatalf("unexpected unread event: %+v", unread)
	}
}

func TestTextMessageToSelf(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	frame := `{"msg_type":3,"text":"note to self","user_pk":"1","random_id":"-7"}`
	if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
		t.Fatalf("dispatch failed: %v", cerr)
	}

	// 无抢先广播无未读刷新,仅一次落库确认
	if len(gl.pubs) != 1 {
		t.Fatalf("broadcast sequence = %v, want exactly one id-created", gl.kinds())
	}
	var created dto.EventMessageIdCreated
	if err := json.Unmarshal(gl.pubs[0].data, &created); err != nil {
		t.Fatalf("decode id created: %v", err)
	}
	if gl.pubs[0].group != "1" || created.RandomID != "-7" || created.DbID != 1 {
		t.Fatalf("unexpected id-created: group=%s event=%+v", gl.pubs[0].group, created)
	}
	if len(svc.messages) != 1 {
		t.Fatalf("message not persisted")
	}
}

func TestMalformedFramesProduceSingleError(t *testing.T) {
	cases := []struct {
		name  string
		frame string
	}{
		{"not json", `{`},
		{"missing msg_type", `{"text":"hi"}`},
		{"non-integer msg_type", `{"msg_type":"three"}`},
		{"unknown kind", `{"msg_type":99}`},
		{"blank text", `{"msg_type":3,"text":"   ","user_pk":"2","random_id":"-1"}`},
		{"missing text", `{"msg_type":3,"user_pk":"2","random_id":"-1"}`},
		{"positive random_id", `{"msg_type":3,"text":"hi","user_pk":"2","random_id":"1"}`},
		{"oversized text", `{"msg_type":3,"text":"` + strings.Repeat("a", 17) + `","user_pk":"2","random_id":"-1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newFakeChatService()
			seedUsers(svc)
			gl := &fakeGroupLayer{}
			c := newTestConsumer(svc, gl, svc.users[1], 16)

			cerr := c.dispatch(context.Background(), []byte(tc.frame))
			if cerr == nil {
				t.Fatal("expected a parsing error")
			}
			if cerr.Kind != dto.ErrKindMessageParsing {
				t.Fatalf("kind = %d, want %d", cerr.Kind, dto.ErrKindMessageParsing)
			}
			if len(gl.pubs) != 0 {
				t.Fatalf("malformed frame leaked broadcasts: %v", gl.kinds())
			}
			if len(svc.messages) != 0 {
				t.Fatal("malformed frame persisted a message")
			}
		})
	}
}

func TestTextMessageExactMaxLengthAccepted(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 16)

	frame := `{"msg_type":3,"text":"` + strings.Repeat("a", 16) + `","user_pk":"2","random_id":"-1"}`
	if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
		t.Fatalf("max-length text rejected: %v", cerr)
	}
	if len(svc.messages) != 1 {
		t.Fatal("message not persisted")
	}
}

func TestTextMessageUnknownTarget(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	frame := `{"msg_type":3,"text":"hi","user_pk":"99","random_id":"-1"}`
	cerr := c.dispatch(context.Background(), []byte(frame))
	if cerr == nil || cerr.Kind != dto.ErrKindInvalidUserPk {
		t.Fatalf("expected InvalidUserPk, got %v", cerr)
	}
	// 目标解析前的抢先广播已经发出,这是设计接受的一致性窗口
	if len(gl.pubs) != 1 {
		t.Fatalf("broadcasts = %v, want only the provisional one", gl.kinds())
	}
	if len(svc.messages) != 0 {
		t.Fatal("message persisted for unknown target")
	}
}

func TestMessageReadIdempotent(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	msg, _ := svc.SaveTextMessage(context.Background(), 2, 1, "hello")

	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	frame := fmt.Sprintf(`{"msg_type":6,"user_pk":"2","message_id":"%d"}`, msg.ID)
	if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
		t.Fatalf("first read failed: %v", cerr)
	}
	unreadAfterFirst, _ := svc.UnreadCount(context.Background(), 2, 1)

	if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
		t.Fatalf("second read failed: %v", cerr)
	}
	unreadAfterSecond, _ := svc.UnreadCount(context.Background(), 2, 1)

	if unreadAfterFirst != 0 || unreadAfterSecond != 0 {
		t.Fatalf("unread after reads = %d, %d, want 0, 0", unreadAfterFirst, unreadAfterSecond)
	}

	// 每次回执:先给作者群组发确认,再刷新自己的未读数
	want := []string{"2:6", "1:9", "2:6", "1:9"}
	got := gl.kinds()
	if len(got) != len(want) {
		t.Fatalf("broadcast sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("broadcast sequence = %v, want %v", got, want)
		}
	}
}

func TestMessageReadWrongRecipient(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	// 消息是 2 发给 3 的,1 无权标记
	msg, _ := svc.SaveTextMessage(context.Background(), 2, 3, "private")

	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	frame := fmt.Sprintf(`{"msg_type":6,"user_pk":"2","message_id":"%d"}`, msg.ID)
	cerr := c.dispatch(context.Background(), []byte(frame))
	if cerr == nil || cerr.Kind != dto.ErrKindInvalidMessageReadId {
		t.Fatalf("expected InvalidMessageReadId, got %v", cerr)
	}
	if msg.ReadAt != nil {
		t.Fatal("foreign message was marked read")
	}
}

func TestCallMessageFlow(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	frame := `{"msg_type":11,"user_pk":"2","random_id":"-2"}`
	if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
		t.Fatalf("dispatch failed: %v", cerr)
	}

	want := []string{"2:11", "2:8", "1:8", "2:9"}
	got := gl.kinds()
	if len(got) != len(want) {
		t.Fatalf("broadcast sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("broadcast sequence = %v, want %v", got, want)
		}
	}

	var call dto.EventNewCallMessage
	if err := json.Unmarshal(gl.pubs[0].data, &call); err != nil {
		t.Fatalf("decode call event: %v", err)
	}
	if !call.IsCall || call.Text != "" || call.RandomID != "-2" {
		t.Fatalf("unexpected call event: %+v", call)
	}
	if svc.messages[1].Kind != model.MessageKindCall {
		t.Fatalf("persisted kind = %d, want call", svc.messages[1].Kind)
	}
}

func TestCallSignalRelay(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	frame := `{"msg_type":12,"user_pk":"2","offer":{"sdp":"v=0"}}`
	if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
		t.Fatalf("dispatch failed: %v", cerr)
	}
	if len(gl.pubs) != 1 || gl.pubs[0].group != "2" {
		t.Fatalf("broadcasts = %v, want one to group 2", gl.kinds())
	}

	var offer dto.EventCallOffer
	if err := json.Unmarshal(gl.pubs[0].data, &offer); err != nil {
		t.Fatalf("decode offer: %v", err)
	}
	if offer.Type != "offer" || offer.FromUser.ID != "1" || offer.FromUser.Name != "Alice" {
		t.Fatalf("unexpected offer relay: %+v", offer)
	}
}

func TestCallSignalToSelfIsNoOp(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	frames := []string{
		`{"msg_type":12,"user_pk":"1","offer":{"sdp":"x"}}`,
		`{"msg_type":13,"user_pk":"1","answer":{"sdp":"y"}}`,
		`{"msg_type":14,"user_pk":"1","candidate":{"c":"z"}}`,
		`{"msg_type":15,"user_pk":"1","reason":"busy"}`,
		`{"msg_type":11,"user_pk":"1","random_id":"-3"}`,
	}
	for _, frame := range frames {
		if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
			t.Fatalf("self-targeted frame errored: %v", cerr)
		}
	}
	if len(gl.pubs) != 0 {
		t.Fatalf("self-targeted frames leaked broadcasts: %v", gl.kinds())
	}
	if len(svc.messages) != 0 {
		t.Fatal("self-targeted call persisted a message")
	}
}

func TestTypingBroadcastToPartners(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	svc.partners[1] = []uint64{2, 3}
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	if cerr := c.dispatch(context.Background(), []byte(`{"msg_type":5}`)); cerr != nil {
		t.Fatalf("typing dispatch failed: %v", cerr)
	}
	if cerr := c.dispatch(context.Background(), []byte(`{"msg_type":10}`)); cerr != nil {
		t.Fatalf("stopped-typing dispatch failed: %v", cerr)
	}

	want := []string{"2:5", "3:5", "2:10", "3:10"}
	got := gl.kinds()
	if len(got) != len(want) {
		t.Fatalf("broadcast sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("broadcast sequence = %v, want %v", got, want)
		}
	}

	var typing dto.EventIsTyping
	if err := json.Unmarshal(gl.pubs[0].data, &typing); err != nil {
		t.Fatalf("decode typing: %v", err)
	}
	if !typing.Typing || typing.UserPk != "1" {
		t.Fatalf("unexpected typing event: %+v", typing)
	}
}

func TestPresenceFanOut(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	svc.partners[1] = []uint64{2, 3}
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	c.announcePresence(context.Background(), true)
	c.announcePresence(context.Background(), false)

	want := []string{"2:1", "3:1", "2:2", "3:2"}
	got := gl.kinds()
	if len(got) != len(want) {
		t.Fatalf("broadcast sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("broadcast sequence = %v, want %v", got, want)
		}
	}
	for _, p := range gl.pubs {
		if p.group == "1" {
			t.Fatal("presence announced to own group")
		}
	}
}

func TestServerOnlyKindsIgnoredInbound(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	for _, kind := range []int{1, 2, 7, 8, 9} {
		frame := fmt.Sprintf(`{"msg_type":%d}`, kind)
		if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
			t.Fatalf("server-only kind %d produced error: %v", kind, cerr)
		}
	}
	if len(gl.pubs) != 0 {
		t.Fatalf("server-only kinds leaked broadcasts: %v", gl.kinds())
	}
}

func TestFileMessageIsStructuralOnly(t *testing.T) {
	svc := newFakeChatService()
	seedUsers(svc)
	gl := &fakeGroupLayer{}
	c := newTestConsumer(svc, gl, svc.users[1], 65535)

	frame := `{"msg_type":4,"file_id":"abc","user_pk":"2","random_id":"-1"}`
	if cerr := c.dispatch(context.Background(), []byte(frame)); cerr != nil {
		t.Fatalf("file frame errored: %v", cerr)
	}
	if len(gl.pubs) != 0 || len(svc.messages) != 0 {
		t.Fatal("file message path unexpectedly wired")
	}
}
