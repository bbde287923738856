package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestHubPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	client := make(Client, 4)
	if !hub.Register(client) {
		t.Fatal("Register failed on a running hub")
	}
	hub.Publish("state", map[string]string{"mode": "hand"})

	select {
	case msg := <-client:
		var ev struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type != "state" || ev.Data["mode"] != "hand" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	hub.Unregister(client)
	if _, ok := <-client; ok {
		t.Fatal("client channel should be closed after unregister")
	}
}

func TestHubStopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := make(Client, 1)
	hub.Register(client)
	cancel()
	<-stopped

	if _, ok := <-client; ok {
		t.Fatal("client channel should be closed when the hub stops")
	}
	if hub.Register(make(Client)) {
		t.Fatal("Register should fail after the hub stopped")
	}
	// Must not block.
	hub.Unregister(client)
}
