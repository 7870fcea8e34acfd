package ws

import (
	"context"
	"errors"
	"fmt"
	"gatebot/internal/exchange"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// epoch одно соединение и всё, что к нему привязано: контекст, очередь исходящих и фоновые задачи.
type epoch struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn
	queue  chan []byte
	log    *logrus.Entry

	failOnce sync.Once
	cause    error
}

func newEpoch(parent context.Context, id uint64, conn *websocket.Conn, queueSize int) *epoch {
	ctx, cancel := context.WithCancel(parent)
	return &epoch{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		conn:   conn,
		queue:  make(chan []byte, queueSize),
	}
}

// fail запоминает первую причину разрыва и гасит эпоху.
func (e *epoch) fail(err error) {
	e.failOnce.Do(func() {
		e.cause = err
	})
	e.cancel()
}

// enqueue блокируется при полной очереди, пока не освободится место или эпоха не завершится.
func (e *epoch) enqueue(ctx context.Context, frame []byte) error {
	select {
	case <-e.ctx.Done():
		return ErrNotConnected
	default:
	}

	select {
	case e.queue <- frame:
		return nil
	case <-e.ctx.Done():
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serve запускает задачи эпохи и возвращается только после того, как все они завершились.
func (c *Client) serve(ep *epoch, handler exchange.MessageHandler) error {
	var wg conc.WaitGroup

	wg.Go(func() { c.sender(ep) })
	wg.Go(func() { c.heartbeat(ep) })
	wg.Go(func() { c.resubscribe(ep) })
	wg.Go(func() {
		defer ep.cancel()
		c.reader(ep, handler)
	})

	<-ep.ctx.Done()
	_ = ep.conn.Close()
	wg.Wait()

	ep.log.WithError(ep.cause).Debug("Задачи WS соединения остановлены.")

	return ep.cause
}

func (c *Client) sender(ep *epoch) {
	for {
		select {
		case <-ep.ctx.Done():
			return
		case frame := <-ep.queue:
			if err := ep.conn.SetWriteDeadline(c.deadline().Add(c.cfg.WriteTimeout)); err != nil {
				ep.fail(fmt.Errorf("%w: %w", ErrSend, err))
				return
			}
			if err := ep.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				ep.fail(fmt.Errorf("%w: %w", ErrSend, err))
				return
			}
			c.metrics.frameSent(ep.ctx)
		}
	}
}

func (c *Client) heartbeat(ep *epoch) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ep.ctx.Done():
			return
		case <-ticker.C:
			data, err := encodeFrame(c.pingFrame())
			if err != nil {
				ep.log.WithError(err).Warn("Не удалось подготовить ping.")
				continue
			}
			if err := ep.enqueue(ep.ctx, data); err != nil {
				return
			}
		}
	}
}

func (c *Client) resubscribe(ep *epoch) {
	ticker := time.NewTicker(c.cfg.ResubscribeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ep.ctx.Done():
			return
		case <-ticker.C:
			for _, sub := range c.cfg.Subscriptions {
				data, err := encodeFrame(c.subscribeFrame(sub))
				if err != nil {
					ep.log.WithError(err).Warn("Не удалось подготовить повторную подписку.")
					continue
				}
				if err := ep.enqueue(ep.ctx, data); err != nil {
					return
				}
			}
			ep.log.Debug("Подписки WS обновлены.")
		}
	}
}

func (c *Client) reader(ep *epoch, handler exchange.MessageHandler) {
	for {
		if c.cfg.IdleTimeout > 0 {
			if err := ep.conn.SetReadDeadline(c.deadline().Add(c.cfg.IdleTimeout)); err != nil {
				ep.fail(fmt.Errorf("%w: %w", ErrReceive, err))
				return
			}
		}

		msgType, data, err := ep.conn.ReadMessage()
		if err != nil {
			if ep.ctx.Err() != nil {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				ep.fail(fmt.Errorf("%w: %s", ErrIdle, c.cfg.IdleTimeout))
				return
			}
			ep.fail(fmt.Errorf("%w: %w", ErrReceive, err))
			return
		}

		if msgType != websocket.TextMessage {
			c.metrics.frameReceived(ep.ctx, "other")
			continue
		}

		c.metrics.frameReceived(ep.ctx, "text")
		c.dispatch(ep, handler, string(data))
	}
}
