package proto

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeClientMessageStampsVersion(t *testing.T) {
	msg := JoinRoomMessage(1234, "sprinter")
	msg.SessionID = 7

	encoded, err := EncodeClientMessage(msg)
	if err != nil {
		t.Fatalf("encode join room: %v", err)
	}
	if msg.Ver != 0 {
		t.Fatalf("expected encode to operate on a copy, got version %d", msg.Ver)
	}

	var decoded struct {
		Ver       int    `json:"ver"`
		SessionID uint64 `json:"sessionId"`
		Type      string `json:"type"`
		JoinRoom  *JoinRoom `json:"joinRoom"`
	}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal encoded message: %v", err)
	}
	if decoded.Ver != Version {
		t.Fatalf("expected version %d, got %d", Version, decoded.Ver)
	}
	if decoded.SessionID != 7 {
		t.Fatalf("expected session id 7, got %d", decoded.SessionID)
	}
	if decoded.Type != TypeJoinRoom {
		t.Fatalf("expected type %q, got %q", TypeJoinRoom, decoded.Type)
	}
	if decoded.JoinRoom == nil || decoded.JoinRoom.SentAt != 1234 || decoded.JoinRoom.Nickname != "sprinter" {
		t.Fatalf("unexpected join payload: %+v", decoded.JoinRoom)
	}
}

func TestEncodeClientMessageOmitsUnsetPayloads(t *testing.T) {
	encoded, err := EncodeClientMessage(AckWorldUpdateMessage(42))
	if err != nil {
		t.Fatalf("encode ack: %v", err)
	}
	body := string(encoded)
	if !strings.Contains(body, `"ack"`) {
		t.Fatalf("expected ack payload present, got %s", body)
	}
	for _, field := range []string{`"joinRoom"`, `"kick"`} {
		if strings.Contains(body, field) {
			t.Fatalf("expected %s omitted, got %s", field, body)
		}
	}
}

func TestDecodeServerMessage(t *testing.T) {
	t.Run("update world payload", func(t *testing.T) {
		raw := []byte(`{"ver":1,"sessionId":3,"type":"updateWorld","updateWorld":{"id":9,"updates":[{"frame":120,"walkActions":[{"entityNetId":5,"clientActionId":77,"x":1,"y":2,"dx":0.5,"dy":-0.5}]}]}}`)
		msg, err := DecodeServerMessage(raw)
		if err != nil {
			t.Fatalf("decode update world: %v", err)
		}
		if msg.Type != TypeUpdateWorld {
			t.Fatalf("expected type %q, got %q", TypeUpdateWorld, msg.Type)
		}
		if msg.SessionID != 3 {
			t.Fatalf("expected session id 3, got %d", msg.SessionID)
		}
		if msg.UpdateWorld == nil || msg.UpdateWorld.ID != 9 {
			t.Fatalf("unexpected update world payload: %+v", msg.UpdateWorld)
		}
		if len(msg.UpdateWorld.Updates) != 1 || msg.UpdateWorld.Updates[0].FrameNumber != 120 {
			t.Fatalf("unexpected updates: %+v", msg.UpdateWorld.Updates)
		}
		walks := msg.UpdateWorld.Updates[0].WalkActions
		if len(walks) != 1 || walks[0].ClientActionID != 77 {
			t.Fatalf("unexpected walk actions: %+v", walks)
		}
	})

	t.Run("missing version defaults to current", func(t *testing.T) {
		msg, err := DecodeServerMessage([]byte(`{"type":"heartbeat"}`))
		if err != nil {
			t.Fatalf("decode heartbeat: %v", err)
		}
		if msg.Ver != Version {
			t.Fatalf("expected version %d, got %d", Version, msg.Ver)
		}
	})

	t.Run("future version rejected", func(t *testing.T) {
		if _, err := DecodeServerMessage([]byte(`{"ver":99,"type":"heartbeat"}`)); err == nil {
			t.Fatalf("expected version mismatch to be rejected")
		}
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		if _, err := DecodeServerMessage([]byte(`{"type":`)); err == nil {
			t.Fatalf("expected malformed payload to be rejected")
		}
	})
}

func TestMessageBuilders(t *testing.T) {
	if msg := StartHostedGameMessage(); msg.Type != TypeStartHostedGame {
		t.Fatalf("unexpected type %q", msg.Type)
	}
	if msg := HeartbeatMessage(); msg.Type != TypeHeartbeat {
		t.Fatalf("unexpected type %q", msg.Type)
	}
	if msg := DisconnectMessage(); msg.Type != TypeDisconnect {
		t.Fatalf("unexpected type %q", msg.Type)
	}
	kick := KickMessage(11)
	if kick.Type != TypeKick || kick.Kick == nil || kick.Kick.KickedConnectionID != 11 {
		t.Fatalf("unexpected kick message: %+v", kick)
	}
	ack := AckWorldUpdateMessage(5)
	if ack.Type != TypeAcknowledgeWorldUpdate || ack.Ack == nil || ack.Ack.ID != 5 {
		t.Fatalf("unexpected ack message: %+v", ack)
	}
}
