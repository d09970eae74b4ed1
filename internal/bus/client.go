// Package bus клиент брокера топиков поверх websocket.
//
// Брокер принимает действия {"action": "pub"|"sub", "topic": ..., "data": ...}
// и рассылает подписчикам сообщения {"topic": ..., "data": ...}.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected соединение с брокером ещё не установлено или потеряно
var ErrNotConnected = errors.New("нет соединения с брокером")

const (
	actionPublish   = "pub"
	actionSubscribe = "sub"

	writeTimeout = 5 * time.Second
	// queueSize сколько сообщений топика может ждать обработки
	queueSize = 64
)

type brokerAction struct {
	Action string      `json:"action"`
	Topic  string      `json:"topic"`
	Data   interface{} `json:"data,omitempty"`
}

// Message сообщение брокера
type Message struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// Client соединение с брокером.
//
// Сообщения каждого топика обрабатываются по порядку в отдельной горутине,
// поэтому медленный обработчик одного топика не задерживает остальные.
// После разрыва соединения клиент переподключается и заново подписывается
// на все топики.
type Client struct {
	url               string
	dialer            *websocket.Dialer
	reconnectInterval time.Duration
	logger            *logrus.Logger

	mu   sync.Mutex // запись в conn
	conn *websocket.Conn

	subsMu sync.RWMutex
	subs   map[string]*subscription

	done      chan struct{}
	closeOnce sync.Once
}

type subscription struct {
	mu       sync.RWMutex
	handlers []func([]byte)
	queue    chan []byte
}

// NewClient создаёт клиент брокера по адресу url (ws:// или wss://)
func NewClient(url string, logger *logrus.Logger) *Client {
	return &Client{
		url:               url,
		dialer:            websocket.DefaultDialer,
		reconnectInterval: time.Second,
		logger:            logger,
		subs:              make(map[string]*subscription),
		done:              make(chan struct{}),
	}
}

// SetReconnectInterval меняет начальный интервал между попытками подключения
func (c *Client) SetReconnectInterval(d time.Duration) {
	c.reconnectInterval = d
}

// Connect подключается к брокеру, повторяя попытки до успеха или отмены ctx
func (c *Client) Connect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.reconnectInterval
	b.MaxInterval = 10 * c.reconnectInterval
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		return c.connect(ctx)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		c.logger.WithError(err).WithField("retry_in", next.String()).Warn("Не удалось подключиться к брокеру топиков")
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("ошибка подключения к %s: %w", c.url, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed() {
		conn.Close()
		return backoff.Permanent(ErrNotConnected)
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn

	for _, topic := range c.topics() {
		if err := c.writeLocked(brokerAction{Action: actionSubscribe, Topic: topic}); err != nil {
			conn.Close()
			c.conn = nil
			return fmt.Errorf("ошибка повторной подписки на %s: %w", topic, err)
		}
	}

	c.logger.WithField("url", c.url).Info("Соединение с брокером топиков установлено")
	return nil
}

// Run читает сообщения брокера до отмены ctx, переподключаясь при разрывах
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	for {
		if c.closed() {
			return nil
		}
		conn := c.current()
		if conn == nil {
			if err := c.Connect(ctx); err != nil {
				return err
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.closed() {
				return nil
			}
			c.logger.WithError(err).Warn("Соединение с брокером топиков потеряно")
			c.drop(conn)
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.WithError(err).Warn("Некорректное сообщение брокера")
			continue
		}
		c.deliver(msg)
	}
}

// Publish публикует payload в топик
func (c *Client) Publish(topic string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.writeLocked(brokerAction{Action: actionPublish, Topic: topic, Data: payload}); err != nil {
		return fmt.Errorf("ошибка публикации в %s: %w", topic, err)
	}
	return nil
}

// Subscribe добавляет обработчик сообщений топика. Обработчик остаётся
// зарегистрированным, даже если брокер сейчас недоступен: подписка будет
// отправлена при переподключении.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	sub, created := c.subscription(topic)
	sub.mu.Lock()
	sub.handlers = append(sub.handlers, handler)
	sub.mu.Unlock()

	if !created {
		return nil
	}
	go c.consume(sub)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	if err := c.writeLocked(brokerAction{Action: actionSubscribe, Topic: topic}); err != nil {
		return fmt.Errorf("ошибка подписки на %s: %w", topic, err)
	}
	c.logger.WithField("topic", topic).Debug("Подписка на топик")
	return nil
}

// Close закрывает соединение и останавливает обработку сообщений
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			c.conn.Close()
			c.conn = nil
		}
	})
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) writeLocked(action brokerAction) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(action)
}

func (c *Client) subscription(topic string) (*subscription, bool) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if sub, ok := c.subs[topic]; ok {
		return sub, false
	}
	sub := &subscription{queue: make(chan []byte, queueSize)}
	c.subs[topic] = sub
	return sub, true
}

func (c *Client) topics() []string {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	return topics
}

func (c *Client) deliver(msg Message) {
	c.subsMu.RLock()
	sub, ok := c.subs[msg.Topic]
	c.subsMu.RUnlock()
	if !ok {
		c.logger.WithField("topic", msg.Topic).Debug("Сообщение топика без подписки")
		return
	}

	select {
	case sub.queue <- msg.Data:
	default:
		c.logger.WithField("topic", msg.Topic).Warn("Очередь топика переполнена, сообщение отброшено")
	}
}

func (c *Client) consume(sub *subscription) {
	for {
		select {
		case <-c.done:
			return
		case data := <-sub.queue:
			sub.mu.RLock()
			handlers := make([]func([]byte), len(sub.handlers))
			copy(handlers, sub.handlers)
			sub.mu.RUnlock()

			for _, handler := range handlers {
				handler(data)
			}
		}
	}
}
