package deversifi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"market-maker-simulator/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const deversifiApiBaseUrl = "https://api.deversifi.com"

type DeversifiExchange struct {
	apiBaseUrl string
	depth      int
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type Options struct {
	BaseUrl           string
	Depth             int
	RequestsPerSecond float64
}

func CreateClient(options Options, logger *zap.Logger) *DeversifiExchange {
	if options.BaseUrl == "" {
		options.BaseUrl = deversifiApiBaseUrl
	}
	if options.Depth <= 0 {
		options.Depth = 25
	}
	limit := rate.Inf
	if options.RequestsPerSecond > 0 {
		limit = rate.Limit(options.RequestsPerSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeversifiExchange{
		apiBaseUrl: options.BaseUrl,
		depth:      options.Depth,
		client:     &http.Client{},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

func (exchange *DeversifiExchange) GetName() string {
	return domain.Deversifi.String()
}

// GetCurrentOrderBook fetches the raw P0 book. The response is a JSON array of
// [price, count, amount] triples where a positive amount is a bid.
func (exchange *DeversifiExchange) GetCurrentOrderBook(ctx context.Context, pair string) (output domain.OrderBook, err error) {
	if err = exchange.limiter.Wait(ctx); err != nil {
		return output, err
	}

	endpoint := exchange.apiBaseUrl + "/market-data/book/" + url.PathEscape(pair) + "/P0/" + strconv.Itoa(exchange.depth)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return output, fmt.Errorf("error creating request: %w", err)
	}

	exchange.logger.Debug("Getting Deversifi order book for pair: " + pair)

	resp, err := exchange.client.Do(req)
	if err != nil {
		return output, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return output, fmt.Errorf("got non-200 result: %s", resp.Status)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return output, fmt.Errorf("error reading response body: %w", err)
	}

	levels, err := parseBook(respBody)
	if err != nil {
		return output, err
	}

	output.Source = domain.Deversifi
	output.Pair = pair
	output.Levels = levels
	output.At = time.Now()
	return output, nil
}

func parseBook(body []byte) ([]domain.PriceLevel, error) {
	var triples [][]json.RawMessage
	if err := json.Unmarshal(body, &triples); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedBook, err)
	}

	levels := make([]domain.PriceLevel, 0, len(triples))
	for i, triple := range triples {
		if len(triple) != 3 {
			return nil, fmt.Errorf("%w: entry %d has %d fields", domain.ErrMalformedBook, i, len(triple))
		}

		var price, amount decimal.Decimal
		var count int
		if err := json.Unmarshal(triple[0], &price); err != nil {
			return nil, fmt.Errorf("%w: entry %d price: %v", domain.ErrMalformedBook, i, err)
		}
		if err := json.Unmarshal(triple[1], &count); err != nil {
			return nil, fmt.Errorf("%w: entry %d count: %v", domain.ErrMalformedBook, i, err)
		}
		if err := json.Unmarshal(triple[2], &amount); err != nil {
			return nil, fmt.Errorf("%w: entry %d amount: %v", domain.ErrMalformedBook, i, err)
		}

		level, err := domain.NewPriceLevelFromSigned(price, count, amount)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		levels = append(levels, level)
	}
	return levels, nil
}
