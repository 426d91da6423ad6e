package dto

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestMsgTypeValid(t *testing.T) {
	cases := []struct {
		kind  int
		valid bool
	}{
		{0, false},
		{1, true},
		{3, true},
		{15, true},
		{16, false},
		{-1, false},
	}
	for _, c := range cases {
		if got := MsgType(c.kind).Valid(); got != c.valid {
			t.Fatalf("MsgType(%d).Valid() = %v, want %v", c.kind, got, c.valid)
		}
	}
}

func TestChatErrorTupleEncoding(t *testing.T) {
	cerr := NewChatError(ErrKindInvalidUserPk, "User with pk 7 does not exist")
	data, err := json.Marshal(cerr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `[2,"User with pk 7 does not exist"]` {
		t.Fatalf("unexpected encoding: %s", data)
	}

	var back ChatError
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Kind != ErrKindInvalidUserPk || back.Detail != cerr.Detail {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestErrorFrameShape(t *testing.T) {
	frame := NewEventError(NewChatError(ErrKindMessageParsing, "'text' error"))
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		MsgType int                `json:"msg_type"`
		Error   [2]json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.MsgType != int(MsgTypeErrorOccurred) {
		t.Fatalf("msg_type = %d, want %d", decoded.MsgType, MsgTypeErrorOccurred)
	}
	if string(decoded.Error[0]) != "1" {
		t.Fatalf("error kind = %s, want 1", decoded.Error[0])
	}
}

// 出站事件编码后按 msg_type 分发解码应能还原全部字段
func TestEventRoundTripByMsgType(t *testing.T) {
	reason := "busy"
	events := []interface{}{
		NewEventWentOnline("3"),
		NewEventWentOffline("3"),
		NewEventNewTextMessage("-1", "hi", "1", "2", "Alice"),
		NewEventIsTyping("1", true),
		NewEventStoppedTyping("1"),
		NewEventMessageRead("5", "2", "1"),
		NewEventMessageIdCreated("-1", 42),
		NewEventNewUnreadCount("1", 3),
		NewEventNewCallMessage("-2", "1", "2", "Alice"),
		NewEventCallOffer(json.RawMessage(`{"sdp":"x"}`), UserRef{ID: "1", Name: "Alice", Email: "a@b.c"}),
		NewEventCallAnswer(json.RawMessage(`{"sdp":"y"}`), UserRef{ID: "2", Name: "Bob", Email: "b@b.c"}),
		NewEventCallCandidate(json.RawMessage(`{"candidate":"z"}`), UserRef{ID: "1", Name: "Alice", Email: "a@b.c"}),
		NewEventCallReject(&reason, UserRef{ID: "2", Name: "Bob", Email: "b@b.c"}),
	}

	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal %T: %v", ev, err)
		}

		var env struct {
			MsgType MsgType `json:"msg_type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("envelope %T: %v", ev, err)
		}
		if !env.MsgType.Valid() {
			t.Fatalf("%T carries invalid msg_type %d", ev, env.MsgType)
		}

		var decoded interface{}
		switch env.MsgType {
		case MsgTypeWentOnline:
			decoded = &EventWentOnline{}
		case MsgTypeWentOffline:
			decoded = &EventWentOffline{}
		case MsgTypeTextMessage:
			decoded = &EventNewTextMessage{}
		case MsgTypeIsTyping:
			decoded = &EventIsTyping{}
		case MsgTypeTypingStopped:
			decoded = &EventStoppedTyping{}
		case MsgTypeMessageRead:
			decoded = &EventMessageRead{}
		case MsgTypeMessageIdCreated:
			decoded = &EventMessageIdCreated{}
		case MsgTypeNewUnreadCount:
			decoded = &EventNewUnreadCount{}
		case MsgTypeCallMessage:
			decoded = &EventNewCallMessage{}
		case MsgTypeCallMessageOffer:
			decoded = &EventCallOffer{}
		case MsgTypeCallMessageAnswer:
			decoded = &EventCallAnswer{}
		case MsgTypeCallMessageCandidate:
			decoded = &EventCallCandidate{}
		case MsgTypeCallMessageReject:
			decoded = &EventCallReject{}
		default:
			t.Fatalf("no decoder for msg_type %d", env.MsgType)
		}

		if err := json.Unmarshal(data, decoded); err != nil {
			t.Fatalf("decode %T: %v", ev, err)
		}
		redone, err := json.Marshal(decoded)
		if err != nil {
			t.Fatalf("re-marshal %T: %v", decoded, err)
		}
		if string(redone) != string(data) {
			t.Fatalf("%T round trip mismatch:\n  first:  %s\n  second: %s", ev, data, redone)
		}
	}
}
