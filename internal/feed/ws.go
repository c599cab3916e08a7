package feed

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

const (
	wsReadDeadline  = 30 * time.Second
	wsWriteDeadline = 5 * time.Second
	wsPingInterval  = 15 * time.Second
	wsReadLimit     = 1 << 20
)

// wsFrame is the wire format a generic tick endpoint is expected to emit.
// Price and volume are decimal strings so precision survives transport.
type wsFrame struct {
	Symbol      string  `json:"symbol"`
	Time        float64 `json:"time"`
	Price       string  `json:"price"`
	Volume      string  `json:"volume"`
	QuoteVolume string  `json:"quote_volume"`
}

// WSFeed streams ticks from any websocket endpoint speaking the JSON frame
// format above. It subscribes by sending the symbol list as the first message
// and reconnects with exponential backoff.
type WSFeed struct {
	url    string
	logger *logger.Logger
}

// NewWSFeed creates a feed against the given websocket URL.
func NewWSFeed(url string, logger *logger.Logger) *WSFeed {
	return &WSFeed{url: url, logger: logger}
}

// Stream implements TickFeed.
func (f *WSFeed) Stream(ctx context.Context, symbols []string) iter.Seq2[types.Tick, error] {
	return func(yield func(types.Tick, error) bool) {
		policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

		for {
			if ctx.Err() != nil {
				return
			}

			conn, err := f.dial(ctx, symbols)
			if err != nil {
				if !yield(types.Tick{}, errors.Wrapf(errors.ErrCodeFeedDisconnected, err, "failed to connect to %s", f.url)) {
					return
				}

				if waitErr := sleepBackoff(ctx, policy); waitErr != nil {
					return
				}

				continue
			}

			policy.Reset()

			if done := f.consume(ctx, conn, yield); done {
				conn.Close()

				return
			}

			conn.Close()

			if waitErr := sleepBackoff(ctx, policy); waitErr != nil {
				return
			}
		}
	}
}

func (f *WSFeed) dial(ctx context.Context, symbols []string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return nil, err
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))

	if err := conn.WriteJSON(map[string]any{"subscribe": symbols}); err != nil {
		conn.Close()

		return nil, err
	}

	f.logger.Info("connected tick feed",
		zap.String("url", f.url),
		zap.Strings("symbols", symbols))

	return conn, nil
}

// consume reads frames until the connection breaks. It returns true when the
// iteration should stop for good.
func (f *WSFeed) consume(ctx context.Context, conn *websocket.Conn, yield func(types.Tick, error) bool) bool {
	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))

				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return true
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true
			}

			return !yield(types.Tick{}, errors.Wrap(errors.ErrCodeFeedDisconnected, "tick feed disconnected", err))
		}

		var frame wsFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			f.logger.Warn("failed to decode tick frame", zap.Error(err))

			continue
		}

		tick, err := tickFromFrame(frame)
		if err != nil {
			f.logger.Warn("dropping unparseable tick frame", zap.Error(err))

			continue
		}

		if !yield(tick, nil) {
			return true
		}
	}
}

func tickFromFrame(frame wsFrame) (types.Tick, error) {
	price, err := decimal.NewFromString(frame.Price)
	if err != nil {
		return types.Tick{}, errors.Wrapf(errors.ErrCodeFeedParseFailed, err, "invalid price %q", frame.Price)
	}

	volume, err := decimal.NewFromString(frame.Volume)
	if err != nil {
		return types.Tick{}, errors.Wrapf(errors.ErrCodeFeedParseFailed, err, "invalid volume %q", frame.Volume)
	}

	quoteVolume := price.Mul(volume)

	if frame.QuoteVolume != "" {
		quoteVolume, err = decimal.NewFromString(frame.QuoteVolume)
		if err != nil {
			return types.Tick{}, errors.Wrapf(errors.ErrCodeFeedParseFailed, err, "invalid quote volume %q", frame.QuoteVolume)
		}
	}

	return types.Tick{
		Symbol:      frame.Symbol,
		Time:        frame.Time,
		Price:       price.InexactFloat64(),
		Volume:      volume.InexactFloat64(),
		QuoteVolume: quoteVolume.InexactFloat64(),
	}, nil
}

func sleepBackoff(ctx context.Context, policy backoff.BackOff) error {
	next := policy.NextBackOff()
	if next == backoff.Stop {
		return errors.New(errors.ErrCodeFeedDisconnected, "reconnect retries exhausted")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(next):
		return nil
	}
}
