package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (c *Client) Get(ctx context.Context, endpoint string, query map[string]string, out any) error {
	return c.Do(ctx, http.MethodGet, endpoint, query, nil, out)
}

func (c *Client) Post(ctx context.Context, endpoint string, body map[string]any, out any) error {
	return c.Do(ctx, http.MethodPost, endpoint, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, endpoint string, query map[string]string, out any) error {
	return c.Do(ctx, http.MethodDelete, endpoint, query, nil, out)
}

// Do подписывает и отправляет запрос. Тело сериализуется один раз: эти же байты хешируются и уходят в сеть.
func (c *Client) Do(ctx context.Context, method, endpoint string, query map[string]string, body map[string]any, out any) error {
	method = strings.ToUpper(method)
	path := CanonicalPath(c.prefix, endpoint)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("Не удалось подготовить тело запроса: %w", err)
		}
	}

	signedQuery := CanonicalQuery(query)
	urlStr := c.baseURL + path
	if len(query) > 0 {
		urlStr += "?" + encodeQuery(query)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("Ожидание лимита запросов прервано: %w", err)
		}
	}

	var bodyReader io.Reader
	if len(payload) > 0 {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, bodyReader)
	if err != nil {
		return fmt.Errorf("Не удалось создать запрос: %w", err)
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	signString := SignatureString(method, path, signedQuery, PayloadHash(payload), timestamp)

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("KEY", c.apiKey)
	req.Header.Set("SIGN", c.signer.SignString(signString))
	req.Header.Set("Timestamp", timestamp)

	debug := c.debug && c.log.IsDebug()
	log := c.logEntry()
	if debug {
		log = c.log.WithRequestID(uuid.NewString()).WithField("component", "gate.rest")
		log.WithFields(logrus.Fields{
			"method":      method,
			"url":         urlStr,
			"query":       signedQuery,
			"body":        string(payload),
			"sign_string": signString,
		}).Debug("Запрос gate")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.recordError(ctx, method, "transport")
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.recordError(ctx, method, "transport")
		return fmt.Errorf("%w: не удалось прочитать ответ: %w", ErrTransport, err)
	}
	c.metrics.recordRequest(ctx, method, path, float64(time.Since(started).Microseconds())/1000)

	if debug {
		log.WithFields(logrus.Fields{
			"status":   resp.StatusCode,
			"response": string(data),
		}).Debug("Ответ gate")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.recordError(ctx, method, "api")
		apiErr := &APIError{Status: resp.StatusCode, Body: string(data)}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.metrics.recordError(ctx, method, "decode")
		return &DecodeError{Body: string(data), Err: err}
	}

	return nil
}

// encodeQuery кодирует параметры для URL; порядок ключей совпадает с подписью.
// Подписывается сырая строка из CanonicalQuery, эта кодировка (пробел как +) только для адреса.
func encodeQuery(params map[string]string) string {
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

func (c *Client) logEntry() *logrus.Entry {
	return c.log.WithComponent("gate.rest")
}
