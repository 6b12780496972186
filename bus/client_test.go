package bus_test

import (
	"context"
	"testing"

	"github.com/evermind-ai/evermind/bus"
)

func TestClient_PublishBeforeConnect(t *testing.T) {
	client := bus.NewClient("ws://localhost:0/ws", "test")

	_, err := client.Publish(context.Background(), bus.TopicActionRequests, bus.EventChatMessage,
		bus.ChatMessagePayload{Message: "hello"})
	if err == nil {
		t.Fatal("publish on an unconnected client must fail, not panic")
	}

	_, err = client.Request(context.Background(), bus.TopicActionRequests, bus.EventChatMessage,
		bus.ChatMessagePayload{Message: "hello"}, bus.EventChatReply)
	if err == nil {
		t.Fatal("request on an unconnected client must fail, not panic")
	}

	if err := client.Listen(context.Background()); err == nil {
		t.Fatal("listen on an unconnected client must fail")
	}

	if err := client.Close(); err != nil {
		t.Fatalf("close on an unconnected client: %v", err)
	}
}
