package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"task-manager-go/internal/metrics"
	"task-manager-go/pkg/models"
)

// ErrNotFound сервис ответил 404
var ErrNotFound = errors.New("not found")

const (
	// DefaultRetryInterval интервал повтора неудачных вызовов
	DefaultRetryInterval = time.Second
	// waitReminderPeriod как часто напоминать в логе об ожидании сервиса
	waitReminderPeriod = 10 * time.Second
)

// APIError сервис ответил кодом, отличным от 2xx
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API вернул ошибку: статус %d, тело: %s", e.Service, e.StatusCode, e.Body)
}

// retryable сообщает, имеет ли смысл повторять вызов
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, ErrNotFound)
}

// apiClient общая часть клиентов внешних сервисов: JSON поверх HTTP,
// повтор неудачных вызовов с постоянным интервалом и метрики вызовов
type apiClient struct {
	service       string
	baseURL       string
	httpClient    *http.Client
	retryInterval time.Duration
	logger        *logrus.Logger

	mu           sync.Mutex
	lastReminder time.Time
}

func newAPIClient(service, baseURL string, timeout time.Duration, logger *logrus.Logger) *apiClient {
	return &apiClient{
		service: service,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryInterval: DefaultRetryInterval,
		logger:        logger,
	}
}

// call выполняет один запрос. in и out могут быть nil.
func (c *apiClient) call(ctx context.Context, method, path string, in, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveExternalCall(c.service, method+" "+path, err, time.Since(start))
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ошибка сериализации запроса: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debugf("Отправка %s запроса на %s", method, url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки HTTP запроса: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Service: c.service, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}
	return nil
}

// do выполняет запрос, повторяя его при сетевых ошибках и ответах 5xx,
// пока он не пройдёт или не будет отменён контекст
func (c *apiClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	return c.retry(ctx, method+" "+path, func() error {
		return c.call(ctx, method, path, in, out)
	})
}

func (c *apiClient) retry(ctx context.Context, operation string, fn func() error) error {
	err := backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.NewConstantBackOff(c.retryInterval), ctx), func(err error, _ time.Duration) {
		c.remind(operation, err)
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// remind пишет в лог об ожидании сервиса не чаще раза в waitReminderPeriod
func (c *apiClient) remind(operation string, err error) {
	c.mu.Lock()
	now := time.Now()
	due := now.Sub(c.lastReminder) >= waitReminderPeriod
	if due {
		c.lastReminder = now
	}
	c.mu.Unlock()

	if !due {
		return
	}
	c.logger.WithError(err).WithFields(logrus.Fields{
		"service":   c.service,
		"operation": operation,
	}).Info("Ожидание необходимого сервиса")
}

// WaitReady блокирует, пока сервис не ответит на проверку здоровья
func (c *apiClient) WaitReady(ctx context.Context) error {
	err := c.retry(ctx, "health", func() error {
		var health models.HealthResponse
		if err := c.call(ctx, http.MethodGet, "/health", nil, &health); err != nil {
			return err
		}
		if health.Status != "" && health.Status != "healthy" {
			return fmt.Errorf("сервис %s в состоянии %s", c.service, health.Status)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.WithField("service", c.service).Info("Необходимый сервис доступен")
	return nil
}

// SetRetryInterval меняет интервал повтора неудачных вызовов
func (c *apiClient) SetRetryInterval(d time.Duration) {
	c.retryInterval = d
}
