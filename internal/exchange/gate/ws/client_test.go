package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gatebot/internal/exchange"
	"gatebot/internal/logger"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWSServer поднимает тестовый WS сервер; handler получает номер подключения начиная с 1.
func mockWSServer(t *testing.T, handler func(n int, conn *websocket.Conn)) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(n, conn)
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(server *httptest.Server) Config {
	cfg := DefaultConfig()
	cfg.URL = wsURL(server)
	cfg.HandshakeTimeout = time.Second
	cfg.WriteTimeout = time.Second
	return cfg
}

type waitRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	hook   func(n int) error
}

func (w *waitRecorder) wait(_ context.Context, d time.Duration) error {
	w.mu.Lock()
	w.delays = append(w.delays, d)
	n := len(w.delays)
	hook := w.hook
	w.mu.Unlock()

	if hook != nil {
		return hook(n)
	}
	return nil
}

func (w *waitRecorder) recorded() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.delays...)
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Errorf("bad frame %q: %v", data, err)
		return nil
	}
	return frame
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestRunDispatchesFramesInOrder(t *testing.T) {
	subscribed := make(chan map[string]any, 1)
	server, _ := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		subscribed <- readFrame(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("A"))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x1, 0x2})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("B"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("C"))
		drain(conn)
	})

	client := New(testConfig(server), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []string
	)
	err := client.RunFunc(ctx, func(_ context.Context, text string) error {
		mu.Lock()
		got = append(got, text)
		if len(got) == 3 {
			cancel()
		}
		mu.Unlock()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A", "B", "C"}, got)

	frame := <-subscribed
	require.NotNil(t, frame)
	assert.Equal(t, CandlesticksChannel, frame["channel"])
	assert.Equal(t, "subscribe", frame["event"])
	assert.Equal(t, []any{"1m", "BTC_USDT"}, frame["payload"])
	assert.Contains(t, frame, "time")
}

func TestRunTerminatesAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(server)
	cfg.MaxRetryAttempts = 4

	rec := &waitRecorder{}
	client := New(cfg, logger.Discard())
	client.wait = rec.wait

	err := client.RunFunc(context.Background(), func(context.Context, string) error { return nil })

	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, rec.recorded())
}

func TestSubscribeFailureCountsAttemptWithoutReset(t *testing.T) {
	server, hits := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		drain(conn)
	})

	cfg := testConfig(server)
	cfg.MaxRetryAttempts = 4

	rec := &waitRecorder{}
	client := New(cfg, logger.Discard())
	client.wait = rec.wait
	client.deadline = func() time.Time { return time.Unix(0, 0) }

	err := client.RunFunc(context.Background(), func(context.Context, string) error { return nil })

	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, ErrSubscribe)
	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, rec.recorded())
}

func TestRunWithFixedClockReachesActive(t *testing.T) {
	subscribed := make(chan map[string]any, 1)
	server, hits := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		select {
		case subscribed <- readFrame(t, conn):
		default:
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("tick"))
		drain(conn)
	})

	cfg := testConfig(server)
	cfg.MaxRetryAttempts = 3
	cfg.IdleTimeout = 2 * time.Second

	client := New(cfg, logger.Discard(), WithClock(func() time.Time { return time.Unix(1700000000, 0) }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	err := client.RunFunc(ctx, func(_ context.Context, text string) error {
		got = append(got, text)
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"tick"}, got)
	assert.Equal(t, int32(1), hits.Load())

	frame := <-subscribed
	require.NotNil(t, frame)
	assert.Equal(t, float64(1700000000), frame["time"])
}

func TestRetryResetsAfterSuccessfulSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) != 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		readFrame(t, conn)
		_ = conn.Close()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &waitRecorder{hook: func(n int) error {
		if n == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}}

	client := New(testConfig(server), logger.Discard())
	client.wait = rec.wait

	err := client.RunFunc(ctx, func(context.Context, string) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 10 * time.Second}, rec.recorded())
}

func TestIdleTimeoutTearsDownConnection(t *testing.T) {
	server, _ := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		drain(conn)
	})

	cfg := testConfig(server)
	cfg.IdleTimeout = 50 * time.Millisecond
	cfg.MaxRetryAttempts = 1

	client := New(cfg, logger.Discard())

	done := make(chan error, 1)
	go func() {
		done <- client.RunFunc(context.Background(), func(context.Context, string) error { return nil })
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.ErrorIs(t, err, ErrIdle)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after idle timeout")
	}
}

func TestHandlerErrorDoesNotStopReader(t *testing.T) {
	server, _ := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		readFrame(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("first"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("second"))
		drain(conn)
	})

	client := New(testConfig(server), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	err := client.Run(ctx, exchange.MessageHandlerFunc(func(_ context.Context, text string) error {
		got = append(got, text)
		if text == "first" {
			return errors.New("boom")
		}
		cancel()
		return nil
	}))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestHeartbeatStartsAfterSubscribeOnEveryConnection(t *testing.T) {
	type observed struct {
		conn  int
		first map[string]any
		pings int
	}
	results := make(chan observed, 4)

	server, _ := mockWSServer(t, func(n int, conn *websocket.Conn) {
		obs := observed{conn: n, first: readFrame(t, conn)}
		for obs.pings < 2 {
			frame := readFrame(t, conn)
			if frame == nil {
				break
			}
			if frame["op"] == "ping" {
				obs.pings++
			}
		}
		select {
		case results <- obs:
		default:
		}
	})

	cfg := testConfig(server)
	cfg.HeartbeatInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := New(cfg, logger.Discard())
	client.wait = func(context.Context, time.Duration) error { return nil }

	done := make(chan error, 1)
	go func() {
		done <- client.RunFunc(ctx, func(context.Context, string) error { return nil })
	}()

	for i := 1; i <= 2; i++ {
		select {
		case obs := <-results:
			assert.Equal(t, i, obs.conn)
			require.NotNil(t, obs.first)
			assert.Equal(t, "subscribe", obs.first["event"], "connection %d", obs.conn)
			assert.Equal(t, 2, obs.pings)
		case <-time.After(5 * time.Second):
			t.Fatalf("connection %d did not receive heartbeats", i)
		}
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestResubscribeRepeatsOnSameConnection(t *testing.T) {
	subscribes := make(chan struct{}, 16)
	server, hits := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		for {
			frame := readFrame(t, conn)
			if frame == nil {
				return
			}
			if frame["event"] == "subscribe" {
				select {
				case subscribes <- struct{}{}:
				default:
				}
			}
		}
	})

	cfg := testConfig(server)
	cfg.ResubscribeInterval = 20 * time.Millisecond
	cfg.Subscriptions = []exchange.Subscription{{Interval: "5m", Symbol: "ETH_USDT"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := New(cfg, logger.Discard())
	done := make(chan error, 1)
	go func() {
		done <- client.RunFunc(ctx, func(context.Context, string) error { return nil })
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-subscribes:
		case <-time.After(5 * time.Second):
			t.Fatalf("subscribe #%d not received", i+1)
		}
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSendThroughCurrentConnection(t *testing.T) {
	received := make(chan map[string]any, 1)
	server, _ := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		readFrame(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		received <- readFrame(t, conn)
		drain(conn)
	})

	client := New(testConfig(server), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- client.RunFunc(ctx, func(ctx context.Context, _ string) error {
			return client.Send(ctx, map[string]any{"channel": "futures.tickers", "event": "subscribe"})
		})
	}()

	select {
	case frame := <-received:
		assert.Equal(t, "futures.tickers", frame["channel"])
	case <-time.After(5 * time.Second):
		t.Fatal("frame was not sent")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.ErrorIs(t, client.Send(context.Background(), "late"), ErrNotConnected)
}

func TestSendWithoutConnection(t *testing.T) {
	client := New(Config{URL: "ws://127.0.0.1:1"}, logger.Discard())

	assert.ErrorIs(t, client.Send(context.Background(), PingFrame{Op: "ping"}), ErrNotConnected)
}

func TestRunRejectsSecondCall(t *testing.T) {
	server, _ := mockWSServer(t, func(_ int, conn *websocket.Conn) {
		drain(conn)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := New(testConfig(server), logger.Discard())
	done := make(chan error, 1)
	go func() {
		done <- client.RunFunc(ctx, func(context.Context, string) error { return nil })
	}()
	require.Eventually(t, client.running.Load, time.Second, time.Millisecond)

	assert.ErrorIs(t, client.RunFunc(ctx, func(context.Context, string) error { return nil }), ErrAlreadyRunning)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunWithoutHandler(t *testing.T) {
	client := New(Config{URL: "ws://127.0.0.1:1"}, logger.Discard())
	assert.Error(t, client.Run(context.Background(), nil))
}

func TestEpochRejectsFramesAfterTeardown(t *testing.T) {
	ep := newEpoch(context.Background(), 1, nil, 1)
	require.NoError(t, ep.enqueue(context.Background(), []byte("queued")))

	ep.fail(ErrReceive)
	ep.fail(ErrSend)

	assert.ErrorIs(t, ep.enqueue(context.Background(), []byte("stale")), ErrNotConnected)
	assert.ErrorIs(t, ep.cause, ErrReceive)
}

func TestEpochEnqueueBlocksUntilContextDone(t *testing.T) {
	ep := newEpoch(context.Background(), 1, nil, 1)
	defer ep.cancel()
	require.NoError(t, ep.enqueue(context.Background(), []byte("fills queue")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, ep.enqueue(ctx, []byte("waits")), context.DeadlineExceeded)
}

func TestFrameEncoding(t *testing.T) {
	client := New(Config{URL: "ws://x"}, logger.Discard(), WithClock(func() time.Time { return time.Unix(1700000000, 0) }))

	data, err := encodeFrame(client.subscribeFrame(exchange.Subscription{Interval: "1m", Symbol: "BTC_USDT"}))
	require.NoError(t, err)
	assert.Equal(t, `{"time":1700000000,"channel":"futures.candlesticks","event":"subscribe","payload":["1m","BTC_USDT"]}`, string(data))

	data, err = encodeFrame(client.pingFrame())
	require.NoError(t, err)
	assert.Equal(t, `{"op":"ping","ping":1700000000}`, string(data))
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "wss://fx-ws.gateio.ws/v4/ws/usdt", Endpoint("fx-ws.gateio.ws", "usdt"))
	assert.Equal(t, "wss://fx-ws-testnet.gateio.ws/v4/ws/btc", Endpoint("wss://fx-ws-testnet.gateio.ws/", "BTC"))
	assert.Equal(t, "ws://127.0.0.1:9000/v4/ws/usdt", Endpoint("ws://127.0.0.1:9000", ""))
}

func TestNewAppliesDefaults(t *testing.T) {
	client := New(Config{URL: "ws://x"}, logger.Discard())

	assert.Equal(t, 20*time.Second, client.cfg.HeartbeatInterval)
	assert.Equal(t, 60*time.Second, client.cfg.ResubscribeInterval)
	assert.Equal(t, 5*time.Second, client.cfg.RetryDelay)
	assert.Equal(t, 60*time.Second, client.cfg.MaxRetryDelay)
	assert.Equal(t, 10, client.cfg.MaxRetryAttempts)
	assert.Equal(t, 100, client.cfg.QueueSize)
	assert.Equal(t, time.Duration(0), client.cfg.IdleTimeout)
	assert.Equal(t, []exchange.Subscription{{Interval: "1m", Symbol: "BTC_USDT"}}, client.Subscriptions())
}
