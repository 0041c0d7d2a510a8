package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSizeBytes = 2 << 20

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type UpstashOption func(*UpstashRedisBackend)

func WithHTTPClient(client *http.Client) UpstashOption {
	return func(b *UpstashRedisBackend) {
		if client != nil {
			b.httpClient = client
		}
	}
}

// UpstashRedisBackend talks to Upstash Redis over its REST API.
type UpstashRedisBackend struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Backend = (*UpstashRedisBackend)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashRedisBackend(cfg UpstashRedisConfig, opts ...UpstashOption) (*UpstashRedisBackend, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	b := &UpstashRedisBackend{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

func (b *UpstashRedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrSessionNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	return []byte(encoded), nil
}

func (b *UpstashRedisBackend) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	cmd := []any{"SET", key, string(payload)}
	if ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(ttl))
	}
	_, err := b.exec(ctx, cmd)
	return err
}

func (b *UpstashRedisBackend) Del(ctx context.Context, key string) error {
	_, err := b.exec(ctx, []any{"DEL", key})
	return err
}

func (b *UpstashRedisBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	resp, err := b.exec(ctx, []any{"EXPIRE", key, ttlSeconds(ttl)})
	if err != nil {
		return err
	}
	var updated int
	if err := json.Unmarshal(resp.Result, &updated); err != nil {
		return fmt.Errorf("decode expire result: %w", err)
	}
	if updated == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Keys walks SCAN until the cursor returns to "0".
func (b *UpstashRedisBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	cursor := "0"
	var keys []string
	for {
		resp, err := b.exec(ctx, []any{"SCAN", cursor, "MATCH", prefix + "*", "COUNT", 100})
		if err != nil {
			return nil, err
		}
		var page []json.RawMessage
		if err := json.Unmarshal(resp.Result, &page); err != nil || len(page) != 2 {
			return nil, fmt.Errorf("decode scan result: %s", string(resp.Result))
		}
		var batch []string
		if err := json.Unmarshal(page[0], &cursor); err != nil {
			return nil, fmt.Errorf("decode scan cursor: %w", err)
		}
		if err := json.Unmarshal(page[1], &batch); err != nil {
			return nil, fmt.Errorf("decode scan keys: %w", err)
		}
		keys = append(keys, batch...)
		if cursor == "0" {
			return keys, nil
		}
	}
}

func (b *UpstashRedisBackend) Ping(ctx context.Context) error {
	_, err := b.exec(ctx, []any{"PING"})
	return err
}

func (b *UpstashRedisBackend) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: redis http status=%d body=%s", ErrStoreUnavailable, resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}
