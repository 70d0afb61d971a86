package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"coinpulse/conf"
	"coinpulse/internal/model"
	"coinpulse/pkg/utils"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// Binance REST 行情客户端，只用公共接口，不需要API key

// ErrNoData 交易所返回了空数据（例如symbol下线、interval不支持）
var ErrNoData = errors.New("exchange returned no data")

// MarketSource 行情数据源，scanner 依赖该接口，方便测试时替换
type MarketSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error)
	GetTicker24h(ctx context.Context, symbol string) (model.Ticker24h, error)
}

type BinanceClient struct {
	baseURL    string
	httpClient *http.Client
	// 重试间隔，测试时调小
	retryDelay time.Duration
}

func NewBinanceClient(cfg conf.ExchangeConfig) *BinanceClient {
	return &BinanceClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout.D()},
		retryDelay: time.Second,
	}
}

// GetKlines 拉取K线，返回时间升序
// /api/v3/klines 返回12列数组：openTime, open, high, low, close, volume, closeTime, ...
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	q := url.Values{}
	q.Set("symbol", utils.NormalizeSymbol(symbol))
	q.Set("interval", interval)
	q.Set("limit", cast.ToString(limit))

	var raw [][]interface{}
	if err := c.get(ctx, "/api/v3/klines?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoData
	}

	klines := make([]model.Kline, 0, len(raw))
	for _, row := range raw {
		k, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("parse kline row for %s %s: %w", symbol, interval, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// GetTicker24h 拉取24小时行情快照
func (c *BinanceClient) GetTicker24h(ctx context.Context, symbol string) (model.Ticker24h, error) {
	var raw struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
		Volume             string `json:"volume"`
		QuoteVolume        string `json:"quoteVolume"`
	}
	path := "/api/v3/ticker/24hr?symbol=" + utils.NormalizeSymbol(symbol)
	if err := c.get(ctx, path, &raw); err != nil {
		return model.Ticker24h{}, err
	}
	if raw.Symbol == "" {
		return model.Ticker24h{}, ErrNoData
	}

	t := model.Ticker24h{Symbol: raw.Symbol}
	var err error
	if t.LastPrice, err = cast.ToFloat64E(raw.LastPrice); err != nil {
		return model.Ticker24h{}, fmt.Errorf("parse ticker lastPrice: %w", err)
	}
	if t.PriceChangePercent, err = cast.ToFloat64E(raw.PriceChangePercent); err != nil {
		return model.Ticker24h{}, fmt.Errorf("parse ticker priceChangePercent: %w", err)
	}
	t.Volume = cast.ToFloat64(raw.Volume)
	t.QuoteVolume = cast.ToFloat64(raw.QuoteVolume)
	return t, nil
}

// get 带重试的GET，3次指数退避，交给 ctx 控制总时长
func (c *BinanceClient) get(ctx context.Context, path string, result interface{}) error {
	return utils.Retry(3, c.retryDelay, true, func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("exchange http %d: %s", resp.StatusCode, truncate(body, 256))
		}
		if len(body) == 0 {
			return ErrNoData
		}
		if err := gojson.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// parseKlineRow 把数组行转成Kline，字符串价格统一转float64
// 交易所固定返回12列，少一列都按残缺数据拒掉
func parseKlineRow(row []interface{}) (model.Kline, error) {
	if len(row) < 12 {
		return model.Kline{}, fmt.Errorf("truncated row: %d columns", len(row))
	}

	openTime, err := cast.ToInt64E(row[0])
	if err != nil {
		return model.Kline{}, fmt.Errorf("open time: %w", err)
	}

	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		v, err := cast.ToFloat64E(row[i])
		if err != nil {
			return model.Kline{}, fmt.Errorf("column %d: %w", i, err)
		}
		fields[i-1] = v
	}

	return model.Kline{
		Timestamp: time.UnixMilli(openTime),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
