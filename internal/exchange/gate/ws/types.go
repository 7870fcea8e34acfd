package ws

import (
	"context"
	"gatebot/internal/exchange"
	"gatebot/internal/logger"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	CandlesticksChannel = "futures.candlesticks"

	defaultHeartbeatInterval   = 20 * time.Second
	defaultResubscribeInterval = 60 * time.Second
	defaultRetryDelay          = 5 * time.Second
	defaultMaxRetryDelay       = 60 * time.Second
	defaultMaxRetryAttempts    = 10
	defaultQueueSize           = 100
	defaultIdleTimeout         = 90 * time.Second
	defaultHandshakeTimeout    = 10 * time.Second
	defaultWriteTimeout        = 10 * time.Second

	readLimit = 2 << 20
)

type Config struct {
	URL                 string
	Channel             string
	Subscriptions       []exchange.Subscription
	HeartbeatInterval   time.Duration
	ResubscribeInterval time.Duration
	RetryDelay          time.Duration
	MaxRetryDelay       time.Duration
	MaxRetryAttempts    int
	QueueSize           int
	// IdleTimeout 0 отключает контроль тишины.
	IdleTimeout      time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Channel:             CandlesticksChannel,
		Subscriptions:       []exchange.Subscription{{Interval: "1m", Symbol: "BTC_USDT"}},
		HeartbeatInterval:   defaultHeartbeatInterval,
		ResubscribeInterval: defaultResubscribeInterval,
		RetryDelay:          defaultRetryDelay,
		MaxRetryDelay:       defaultMaxRetryDelay,
		MaxRetryAttempts:    defaultMaxRetryAttempts,
		QueueSize:           defaultQueueSize,
		IdleTimeout:         defaultIdleTimeout,
		HandshakeTimeout:    defaultHandshakeTimeout,
		WriteTimeout:        defaultWriteTimeout,
	}
}

// Endpoint собирает адрес потока фьючерсов: wss://{domain}/v4/ws/{settle}.
func Endpoint(domain, settle string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if settle == "" {
		settle = "usdt"
	}
	if !strings.HasPrefix(domain, "ws://") && !strings.HasPrefix(domain, "wss://") {
		domain = "wss://" + domain
	}
	return domain + "/v4/ws/" + strings.ToLower(settle)
}

type Client struct {
	cfg      Config
	dialer   *websocket.Dialer
	log      *logger.Logger
	metrics  *streamMetrics
	// now ставит метки времени в кадрах; сроки операций на сокете берутся из deadline.
	now      func() time.Time
	deadline func() time.Time
	wait     func(ctx context.Context, d time.Duration) error

	running  atomic.Bool
	epochSeq atomic.Uint64

	mu      sync.Mutex
	current *epoch
}

type SubscribeFrame struct {
	Time    int64    `json:"time"`
	Channel string   `json:"channel"`
	Event   string   `json:"event"`
	Payload []string `json:"payload"`
}

type PingFrame struct {
	Op   string `json:"op"`
	Ping int64  `json:"ping"`
}
