package plugins

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func TestPing(t *testing.T) {
	gateway := newFakeGateway()
	ping := NewPing(gateway)

	ping.Action("ping", "", &discordgo.Message{
		ID:        "5000",
		ChannelID: generalChannelID,
		Timestamp: time.Now().Add(-250 * time.Millisecond),
	})

	if len(gateway.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(gateway.sent))
	}
	reply := gateway.sent[0].content
	if !strings.HasPrefix(reply, "Pong! (") || !strings.HasSuffix(reply, " ms)") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if strings.HasPrefix(reply, "Pong! (0.") || strings.HasPrefix(reply, "Pong! (-") {
		t.Fatalf("delay should be at least 250ms: %s", reply)
	}
}
