package chat

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		raw     string
		wantErr error
	}{
		{"user join", EventUserJoin, `{"username":"alice","avatar":"a.png"}`, nil},
		{"user join without fields", EventUserJoin, `{}`, nil},
		{"send message", EventSendMessage, `{"message":"hi","roomId":"general"}`, nil},
		{"typing false", EventTyping, `{"roomId":"general","isTyping":false}`, nil},
		{"unread counts without payload", EventGetUnreadCounts, ``, nil},
		{"unread counts null", EventGetUnreadCounts, `null`, nil},
		{"unknown event", "explode", `{}`, ErrUnknownEvent},
		{"null payload", EventSendMessage, `null`, ErrMalformedPayload},
		{"empty payload", EventJoinRoom, ``, ErrMalformedPayload},
		{"array payload", EventJoinRoom, `["general"]`, ErrMalformedPayload},
		{"string payload", EventUserJoin, `"alice"`, ErrMalformedPayload},
		{"wrong field type", EventSendMessage, `{"message":42,"roomId":"general"}`, ErrMalformedPayload},
		{"missing room", EventSendMessage, `{"message":"hi"}`, ErrMalformedPayload},
		{"typing without flag", EventTyping, `{"roomId":"general"}`, ErrMalformedPayload},
		{"reaction without message", EventAddReaction, `{"reaction":"+1","roomId":"general"}`, ErrMalformedPayload},
		{"mark read empty list", EventMarkRead, `{"roomId":"general","messageIds":[]}`, nil},
		{"mark read without ids", EventMarkRead, `{"roomId":"general"}`, ErrMalformedPayload},
		{"mark read null ids", EventMarkRead, `{"roomId":"general","messageIds":null}`, ErrMalformedPayload},
		{"private without target", EventPrivateMessage, `{"message":"psst"}`, ErrMalformedPayload},
		{"negative limit", EventLoadOlderMessages, `{"roomId":"general","limit":-5}`, ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest(tt.event, json.RawMessage(tt.raw))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeRequest() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("DecodeRequest() error %v is not a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeRequest() unexpected error: %v", err)
			}
			if req.EventName() != tt.event {
				t.Errorf("EventName() = %q, want %q", req.EventName(), tt.event)
			}
		})
	}
}

func TestDecodeRequest_Fields(t *testing.T) {
	req, err := DecodeRequest(EventMarkRead, json.RawMessage(`{"messageIds":["m1","m2"],"roomId":"general"}`))
	if err != nil {
		t.Fatalf("DecodeRequest() unexpected error: %v", err)
	}
	markRead, ok := req.(*MarkReadRequest)
	if !ok {
		t.Fatalf("DecodeRequest() returned %T, want *MarkReadRequest", req)
	}
	if markRead.RoomID != "general" || len(markRead.MessageIDs) != 2 {
		t.Errorf("decoded %+v", markRead)
	}

	req, err = DecodeRequest(EventTyping, json.RawMessage(`{"roomId":"general","isTyping":false}`))
	if err != nil {
		t.Fatalf("DecodeRequest() unexpected error: %v", err)
	}
	if typing := req.(*TypingRequest); typing.IsTyping == nil || *typing.IsTyping {
		t.Errorf("isTyping = %v, want explicit false", typing.IsTyping)
	}
}

func TestErrorClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrEmptyBody, "validation"},
		{ErrUnknownRoom, "not_found"},
		{ErrNotIdentified, "state"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := errorClass(tt.err); got != tt.want {
			t.Errorf("errorClass(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
