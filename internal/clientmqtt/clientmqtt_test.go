package clientmqtt

import (
	"context"
	"testing"
	"time"

	"lightdesk/internal/config"
	"lightdesk/internal/logger"
)

func TestCommandName(t *testing.T) {
	tests := []struct {
		prefix, topic, want string
		ok                  bool
	}{
		{"lightdesk", "lightdesk/cmd/go", "go", true},
		{"lightdesk/", "lightdesk/cmd/set_dmx", "set_dmx", true},
		{"", "cmd/stop", "stop", true},
		{"lightdesk", "lightdesk/state/dmx", "", false},
		{"lightdesk", "lightdesk/cmd/", "", false},
		{"lightdesk", "lightdesk/cmd/a/b", "", false},
		{"lightdesk", "other/cmd/go", "", false},
	}
	for _, tt := range tests {
		got, ok := commandName(tt.prefix, tt.topic)
		if got != tt.want || ok != tt.ok {
			t.Errorf("commandName(%q, %q) = %q, %v; want %q, %v", tt.prefix, tt.topic, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTopics(t *testing.T) {
	if got := commandFilter("lightdesk"); got != "lightdesk/cmd/+" {
		t.Errorf("filter %q", got)
	}
	if got := joinTopic("/desk/", "state/dmx"); got != "desk/state/dmx" {
		t.Errorf("join %q", got)
	}
	if !retained("state/playback") {
		t.Error("state topics are retained")
	}
	if retained("event/error") || retained("event/midi") {
		t.Error("events are not retained")
	}
}

func TestPublishBeforeStartIsDropped(t *testing.T) {
	c := NewClient(logger.NewNop(), config.MQTTConf{TopicPrefix: "lightdesk"})
	c.Publish("state/dmx", map[string]int{"1": 2})
}

func TestStartDoesNotWaitForBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// nothing listens on port 1.
	c := NewClient(logger.NewNop(), config.MQTTConf{ClientID: "test", Host: "127.0.0.1", Port: "1", TopicPrefix: "lightdesk"})

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, func(string, []byte) error { return nil }, nil) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start blocked on an unreachable broker")
	}

	c.Publish("state/dmx", map[string]int{"1": 2})
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestStartWithCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(logger.NewNop(), config.MQTTConf{Host: "127.0.0.1", Port: "1"})
	if err := c.Start(ctx, nil, nil); err == nil {
		t.Error("expected an error")
	}
	c.Publish("state/dmx", 1)
}
