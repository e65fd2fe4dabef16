package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chatline/dm-app/internal/store"
)

func TestParseClientPing(t *testing.T) {
	msgType, msg, err := ParseClientMessage([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage: %v", err)
	}
	if msgType != TypePing {
		t.Errorf("type = %q, want %q", msgType, TypePing)
	}
	if _, ok := msg.(PingMsg); !ok {
		t.Errorf("msg = %T, want PingMsg", msg)
	}
}

func TestParseClientMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{not json`},
		{"missing type", `{"users":["u1"]}`},
		{"empty type", `{"type":""}`},
		{"server-only type", `{"type":"new-message"}`},
		{"unknown type", `{"type":"subscribe"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseClientMessage([]byte(tt.data)); err == nil {
				t.Errorf("ParseClientMessage(%q) succeeded, want error", tt.data)
			}
		})
	}
}

func TestNewServerMessageInjectsType(t *testing.T) {
	data, err := NewServerMessage(TypeUsersOnline, UsersOnlineMsg{
		Users: []string{"u1", "u2"},
	})
	if err != nil {
		t.Fatalf("NewServerMessage: %v", err)
	}

	var decoded struct {
		Type  string   `json:"type"`
		Users []string `json:"users"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != TypeUsersOnline {
		t.Errorf("type = %q, want %q", decoded.Type, TypeUsersOnline)
	}
	if len(decoded.Users) != 2 || decoded.Users[0] != "u1" || decoded.Users[1] != "u2" {
		t.Errorf("users = %v, want [u1 u2]", decoded.Users)
	}
}

func TestNewMessageEventCarriesFullMessage(t *testing.T) {
	msg := store.Message{
		ID:         "m1",
		SenderID:   "u1",
		ReceiverID: "u2",
		Content:    "hi",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := NewServerMessage(TypeNewMessage, NewMessageMsg{Message: msg})
	if err != nil {
		t.Fatalf("NewServerMessage: %v", err)
	}

	var decoded struct {
		Type    string        `json:"type"`
		Message store.Message `json:"message"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != TypeNewMessage {
		t.Errorf("type = %q, want %q", decoded.Type, TypeNewMessage)
	}
	if decoded.Message.ID != msg.ID || decoded.Message.SenderID != msg.SenderID ||
		decoded.Message.ReceiverID != msg.ReceiverID || decoded.Message.Content != msg.Content {
		t.Errorf("message round trip mismatch: %+v", decoded.Message)
	}
	if !decoded.Message.CreatedAt.Equal(msg.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", decoded.Message.CreatedAt, msg.CreatedAt)
	}
}
