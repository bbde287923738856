package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"attendance-kiosk/config"

	"github.com/gorilla/websocket"
)

type recordingHandler struct {
	mu   sync.Mutex
	msgs []string
	got  chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{got: make(chan struct{}, 16)}
}

func (h *recordingHandler) HandleMessage(raw string) error {
	h.mu.Lock()
	h.msgs = append(h.msgs, raw)
	h.mu.Unlock()
	h.got <- struct{}{}
	if !strings.HasPrefix(raw, "{") {
		return errors.New("not a frame")
	}
	return nil
}

// echoBackend behaves like the recognition consumer: it splits each frame at
// the first '}' and replies with the metadata text followed by result.
func echoBackend(t *testing.T, result string, closeAfter int) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for i := 0; closeAfter <= 0 || i < closeAfter; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			text := string(data)
			idx := strings.IndexByte(text, '}')
			if err := conn.WriteMessage(websocket.TextMessage, []byte(text[:idx+1]+result)); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientSendAndListen(t *testing.T) {
	srv := echoBackend(t, `["thumbs up"]`, 1)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, wsURL(srv), Options{WriteTimeout: time.Second})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	h := newRecordingHandler()
	done := make(chan error, 1)
	go func() { done <- client.Listen(ctx, h) }()

	if err := client.Send(ctx, `{"id":"hand","token":1}data:image/jpeg;base64,AAAA`); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-h.got:
	case <-ctx.Done():
		t.Fatal("no reply received")
	}
	h.mu.Lock()
	got := h.msgs[0]
	h.mu.Unlock()
	if want := `{"id":"hand","token":1}["thumbs up"]`; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}

	// The backend hangs up after one frame; that is fatal for the session.
	select {
	case err := <-done:
		if !errors.Is(err, ErrConnectionLost) {
			t.Fatalf("Listen err = %v, want ErrConnectionLost", err)
		}
	case <-ctx.Done():
		t.Fatal("Listen did not return after the backend closed")
	}
}

func TestListenStopsOnContextCancel(t *testing.T) {
	srv := echoBackend(t, `{}`, 0)
	defer srv.Close()

	client, err := Dial(context.Background(), wsURL(srv), Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Listen(ctx, newRecordingHandler()) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Listen err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not stop")
	}
	// Close already ran when the context ended; calling it again is a no-op.
	client.Close()
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := Dial(context.Background(), wsURL(srv), Options{DialTimeout: time.Second}); err == nil {
		t.Fatal("expected dial to fail against a non-websocket endpoint")
	}
}

func TestSelectEndpoint(t *testing.T) {
	base := config.Default().Transport

	tests := []struct {
		name    string
		mutate  func(*config.TransportConfig)
		want    string
		wantErr bool
	}{
		{"plain page", func(c *config.TransportConfig) {}, "ws://localhost:8000/ws/camera", false},
		{"plain custom host", func(c *config.TransportConfig) { c.Host = "10.0.0.5" }, "ws://10.0.0.5:8000/ws/camera", false},
		{"secure page", func(c *config.TransportConfig) { c.Secure = true }, "wss://test.msuaiclub.com:443/ws/camera", false},
		{"explicit endpoint", func(c *config.TransportConfig) { c.Endpoint = "wss://rec.example.org/ws/camera" }, "wss://rec.example.org/ws/camera", false},
		{"secure with plain endpoint", func(c *config.TransportConfig) {
			c.Secure = true
			c.SecureEndpoint = "ws://insecure.example.org/ws"
		}, "", true},
		{"http scheme", func(c *config.TransportConfig) { c.Endpoint = "http://example.org/ws" }, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			got, err := SelectEndpoint(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectEndpoint: %v", err)
			}
			if got != tt.want {
				t.Errorf("endpoint = %q, want %q", got, tt.want)
			}
		})
	}
}
