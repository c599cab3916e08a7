package feed

import (
	"context"
	"time"

	binance "github.com/adshao/go-binance/v2"
	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/datasource"
	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

const fetchPageSize = 1000

// FetchBinance downloads aggregated trades for a symbol and range from the
// Binance REST API into the writer. The range is in seconds since epoch.
func FetchBinance(ctx context.Context, writer *datasource.DatasetWriter, symbol string, r types.TimeRange, log *logger.Logger) error {
	client := binance.NewClient("", "")

	startMillis := int64(r.Start * 1000)
	endMillis := int64(r.End * 1000)

	bar := progressbar.New(int(endMillis - startMillis))
	current := startMillis

	for current < endMillis {
		trades, err := client.NewAggTradesService().
			Symbol(symbol).
			StartTime(current).
			EndTime(endMillis).
			Limit(fetchPageSize).
			Do(ctx)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to fetch trades for %s", symbol)
		}

		if len(trades) == 0 {
			break
		}

		batch := make([]types.Tick, 0, len(trades))

		for _, trade := range trades {
			tick, err := tickFromAggTradeREST(symbol, trade)
			if err != nil {
				log.Warn("skipping unparseable trade",
					zap.Int64("trade_id", trade.AggTradeID),
					zap.Error(err))

				continue
			}

			batch = append(batch, tick)
		}

		if err := writer.Write(batch); err != nil {
			return err
		}

		last := trades[len(trades)-1].Timestamp
		bar.Add(int(last + 1 - current))
		current = last + 1

		if len(trades) < fetchPageSize {
			break
		}
	}

	log.Info("fetched binance trades",
		zap.String("symbol", symbol),
		zap.Int("ticks", writer.Count()))

	return nil
}

func tickFromAggTradeREST(symbol string, trade *binance.AggTrade) (types.Tick, error) {
	price, err := decimal.NewFromString(trade.Price)
	if err != nil {
		return types.Tick{}, errors.Wrapf(errors.ErrCodeFeedParseFailed, err, "invalid price %q", trade.Price)
	}

	quantity, err := decimal.NewFromString(trade.Quantity)
	if err != nil {
		return types.Tick{}, errors.Wrapf(errors.ErrCodeFeedParseFailed, err, "invalid quantity %q", trade.Quantity)
	}

	return types.Tick{
		Symbol:      symbol,
		Time:        float64(trade.Timestamp) / 1000.0,
		Price:       price.InexactFloat64(),
		Volume:      quantity.InexactFloat64(),
		QuoteVolume: price.Mul(quantity).InexactFloat64(),
	}, nil
}

// FetchPolygon downloads trades for a ticker and range from the Polygon API
// into the writer. Requires an API key.
func FetchPolygon(ctx context.Context, writer *datasource.DatasetWriter, apiKey, ticker string, r types.TimeRange, log *logger.Logger) error {
	if apiKey == "" {
		return errors.New(errors.ErrCodeInvalidProvider, "polygon api key is required")
	}

	client := polygon.New(apiKey)

	startNanos := time.Unix(0, int64(r.Start*float64(time.Second)))
	endNanos := time.Unix(0, int64(r.End*float64(time.Second)))

	params := models.ListTradesParams{Ticker: ticker}.
		WithTimestamp(models.GTE, models.Nanos(startNanos)).
		WithTimestamp(models.LTE, models.Nanos(endNanos)).
		WithOrder(models.Asc).
		WithLimit(fetchPageSize)

	bar := progressbar.Default(-1, "downloading trades")
	batch := make([]types.Tick, 0, fetchPageSize)

	iter := client.ListTrades(ctx, params)
	for iter.Next() {
		trade := iter.Item()

		at := time.Time(trade.ParticipantTimestamp)
		batch = append(batch, types.Tick{
			Symbol:      ticker,
			Time:        float64(at.UnixNano()) / float64(time.Second),
			Price:       trade.Price,
			Volume:      trade.Size,
			QuoteVolume: trade.Price * trade.Size,
		})

		if len(batch) == fetchPageSize {
			if err := writer.Write(batch); err != nil {
				return err
			}

			bar.Add(len(batch))
			batch = batch[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to fetch trades for %s", ticker)
	}

	if len(batch) > 0 {
		if err := writer.Write(batch); err != nil {
			return err
		}

		bar.Add(len(batch))
	}

	log.Info("fetched polygon trades",
		zap.String("ticker", ticker),
		zap.Int("ticks", writer.Count()))

	return nil
}
