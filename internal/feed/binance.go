package feed

import (
	"context"
	"iter"

	binance "github.com/adshao/go-binance/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// BinanceFeed streams aggregated trades from the Binance websocket API.
// Disconnects are retried with exponential backoff; the sequence only ends
// when the context is cancelled or the retries are exhausted.
type BinanceFeed struct {
	logger *logger.Logger
}

// NewBinanceFeed creates a feed against the public Binance stream. No API
// key is needed for market data.
func NewBinanceFeed(logger *logger.Logger) *BinanceFeed {
	return &BinanceFeed{logger: logger}
}

// Stream implements TickFeed.
func (f *BinanceFeed) Stream(ctx context.Context, symbols []string) iter.Seq2[types.Tick, error] {
	return func(yield func(types.Tick, error) bool) {
		ticks := make(chan types.Tick, 256)
		wsErrs := make(chan error, 1)

		handler := func(event *binance.WsAggTradeEvent) {
			tick, err := tickFromAggTrade(event)
			if err != nil {
				f.logger.Warn("dropping unparseable trade",
					zap.String("symbol", event.Symbol),
					zap.Error(err))

				return
			}

			select {
			case ticks <- tick:
			case <-ctx.Done():
			}
		}
		errHandler := func(err error) {
			select {
			case wsErrs <- err:
			default:
			}
		}

		var doneC, stopC chan struct{}

		dial := func() error {
			var err error
			doneC, stopC, err = binance.WsCombinedAggTradeServe(symbols, handler, errHandler)

			return err
		}

		policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
		if err := backoff.Retry(dial, policy); err != nil {
			yield(types.Tick{}, errors.Wrap(errors.ErrCodeFeedDisconnected, "failed to connect to binance stream", err))

			return
		}

		defer func() {
			if stopC != nil {
				close(stopC)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-doneC:
				f.logger.Warn("binance stream closed, reconnecting")
				stopC = nil

				if err := backoff.Retry(dial, policy); err != nil {
					yield(types.Tick{}, errors.Wrap(errors.ErrCodeFeedDisconnected, "lost binance stream", err))

					return
				}
			case err := <-wsErrs:
				if !yield(types.Tick{}, errors.Wrap(errors.ErrCodeFeedDisconnected, "binance stream error", err)) {
					return
				}
			case tick := <-ticks:
				if !yield(tick, nil) {
					return
				}
			}
		}
	}
}

// tickFromAggTrade converts a websocket trade event. Prices arrive as decimal
// strings and are parsed exactly before the single conversion to float64, so
// batch and live ingestion of the same trade produce the same bits.
func tickFromAggTrade(event *binance.WsAggTradeEvent) (types.Tick, error) {
	price, err := decimal.NewFromString(event.Price)
	if err != nil {
		return types.Tick{}, errors.Wrapf(errors.ErrCodeFeedParseFailed, err, "invalid price %q", event.Price)
	}

	quantity, err := decimal.NewFromString(event.Quantity)
	if err != nil {
		return types.Tick{}, errors.Wrapf(errors.ErrCodeFeedParseFailed, err, "invalid quantity %q", event.Quantity)
	}

	return types.Tick{
		Symbol:      event.Symbol,
		Time:        float64(event.TradeTime) / 1000.0,
		Price:       price.InexactFloat64(),
		Volume:      quantity.InexactFloat64(),
		QuoteVolume: price.Mul(quantity).InexactFloat64(),
	}, nil
}
