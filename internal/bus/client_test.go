package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// broker минимальный брокер: запоминает действия клиентов и рассылает
// опубликованные сообщения подписчикам
type broker struct {
	mu      sync.Mutex
	actions []brokerAction
	conns   map[*websocket.Conn]map[string]bool
}

func newBroker() *broker {
	return &broker{conns: make(map[*websocket.Conn]map[string]bool)}
}

func (b *broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.conns[conn] = make(map[string]bool)
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.conns, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	for {
		var action struct {
			Action string          `json:"action"`
			Topic  string          `json:"topic"`
			Data   json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&action); err != nil {
			return
		}
		b.mu.Lock()
		b.actions = append(b.actions, brokerAction{Action: action.Action, Topic: action.Topic})
		switch action.Action {
		case actionSubscribe:
			b.conns[conn][action.Topic] = true
		case actionPublish:
			for c, topics := range b.conns {
				if topics[action.Topic] {
					_ = c.WriteJSON(Message{Topic: action.Topic, Data: action.Data})
				}
			}
		}
		b.mu.Unlock()
	}
}

func (b *broker) count(action, topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, a := range b.actions {
		if a.Action == action && a.Topic == topic {
			n++
		}
	}
	return n
}

func (b *broker) send(topic string, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c, topics := range b.conns {
		if topics[topic] {
			_ = c.WriteJSON(Message{Topic: topic, Data: json.RawMessage(data)})
		}
	}
}

func (b *broker) dropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		c.Close()
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startClient(t *testing.T, url string) (*Client, context.CancelFunc, chan error) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	c := NewClient(url, logger)
	c.SetReconnectInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Connect(ctx))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return c, cancel, done
}

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()

	b := newBroker()
	srv := httptest.NewServer(b)
	defer srv.Close()

	c, cancel, done := startClient(t, wsURL(srv))
	defer func() {
		cancel()
		<-done
	}()

	received := make(chan []byte, 1)
	require.NoError(t, c.Subscribe("status", func(payload []byte) { received <- payload }))
	require.Eventually(t, func() bool { return b.count(actionSubscribe, "status") == 1 }, time.Second, time.Millisecond)

	require.NoError(t, c.Publish("status", map[string]string{"state": "ok"}))

	select {
	case payload := <-received:
		assert.JSONEq(t, `{"state":"ok"}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestSeveralHandlersSingleSubscription(t *testing.T) {
	t.Parallel()

	b := newBroker()
	srv := httptest.NewServer(b)
	defer srv.Close()

	c, cancel, done := startClient(t, wsURL(srv))
	defer func() {
		cancel()
		<-done
	}()

	var mu sync.Mutex
	var got []string
	handler := func(name string) func([]byte) {
		return func([]byte) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, name)
		}
	}
	require.NoError(t, c.Subscribe("pose", handler("a")))
	require.NoError(t, c.Subscribe("pose", handler("b")))
	require.Eventually(t, func() bool { return b.count(actionSubscribe, "pose") == 1 }, time.Second, time.Millisecond)

	b.send("pose", `{}`)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, b.count(actionSubscribe, "pose"))
}

func TestResubscribeAfterReconnect(t *testing.T) {
	t.Parallel()

	b := newBroker()
	srv := httptest.NewServer(b)
	defer srv.Close()

	c, cancel, done := startClient(t, wsURL(srv))
	defer func() {
		cancel()
		<-done
	}()

	received := make(chan []byte, 4)
	require.NoError(t, c.Subscribe("battery", func(payload []byte) { received <- payload }))
	require.Eventually(t, func() bool { return b.count(actionSubscribe, "battery") == 1 }, time.Second, time.Millisecond)

	b.dropAll()
	require.Eventually(t, func() bool { return b.count(actionSubscribe, "battery") == 2 }, 2*time.Second, time.Millisecond)

	b.send("battery", `{"voltage":12}`)
	select {
	case payload := <-received:
		assert.JSONEq(t, `{"voltage":12}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("message was not delivered after reconnect")
	}
}

func TestPublishWithoutConnection(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()
	c := NewClient("ws://127.0.0.1:1", logger)
	assert.ErrorIs(t, c.Publish("status", nil), ErrNotConnected)
	assert.NoError(t, c.Subscribe("status", func([]byte) {}))
	c.Close()
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	b := newBroker()
	srv := httptest.NewServer(b)
	defer srv.Close()

	_, cancel, done := startClient(t, wsURL(srv))
	cancel()

	select {
	case err := <-done:
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
