package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"hodler/internal/models"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// ErrNotFound reports that the API has no coin for the requested id.
var ErrNotFound = errors.New("coin not found")

// Client is a CoinGecko v3 API client. Every call makes exactly one HTTP
// request; retries and caching are the caller's concern.
type Client struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko: %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coingecko: decode %s: %w", path, err)
	}
	return nil
}

// FetchMarketList returns the top coins by market cap. Snapshots are returned
// without a last-updated stamp; the caller stamps them at persist time.
func (c *Client) FetchMarketList(ctx context.Context, perPage int) ([]models.CoinSnapshot, error) {
	if perPage <= 0 {
		perPage = 100
	}
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", "1")

	var rows []marketRow
	if err := c.getJSON(ctx, "/coins/markets", q, &rows); err != nil {
		return nil, err
	}

	coins := make([]models.CoinSnapshot, 0, len(rows))
	for _, r := range rows {
		coins = append(coins, models.CoinSnapshot{
			ID:            r.ID,
			Symbol:        strings.ToUpper(r.Symbol),
			Name:          r.Name,
			Image:         r.Image,
			CurrentPrice:  orZero(r.CurrentPrice),
			Change24h:     orZero(r.Change24h),
			MarketCap:     orZero(r.MarketCap),
			MarketCapRank: rankOrZero(r.MarketCapRank),
		})
	}
	return coins, nil
}

// FetchCoinByID returns the market snapshot of a single coin, or ErrNotFound.
func (c *Client) FetchCoinByID(ctx context.Context, id string) (*models.CoinSnapshot, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", id)

	var rows []marketRow
	if err := c.getJSON(ctx, "/coins/markets", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	r := rows[0]
	return &models.CoinSnapshot{
		ID:            r.ID,
		Symbol:        strings.ToUpper(r.Symbol),
		Name:          r.Name,
		Image:         r.Image,
		CurrentPrice:  orZero(r.CurrentPrice),
		Change24h:     orZero(r.Change24h),
		MarketCap:     orZero(r.MarketCap),
		MarketCapRank: rankOrZero(r.MarketCapRank),
	}, nil
}

// FetchCoinDetail returns the detail snapshot of one coin, or ErrNotFound.
func (c *Client) FetchCoinDetail(ctx context.Context, id string) (*models.CoinDetailSnapshot, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "true")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")

	var resp coinDetailResponse
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(id), q, &resp); err != nil {
		return nil, err
	}

	md := resp.MarketData
	return &models.CoinDetailSnapshot{
		ID:                resp.ID,
		Symbol:            strings.ToUpper(resp.Symbol),
		Name:              resp.Name,
		Image:             resp.Image.Large,
		CurrentPrice:      md.CurrentPrice["usd"],
		Change24h:         orZero(md.Change24h),
		MarketCapUSD:      md.MarketCap["usd"],
		TotalVolumeUSD:    md.TotalVolume["usd"],
		CirculatingSupply: md.CirculatingSupply,
		TotalSupply:       md.TotalSupply,
		MaxSupply:         md.MaxSupply,
		AllTimeHighUSD:    md.ATH["usd"],
		AllTimeHighDate:   md.ATHDate["usd"],
		AllTimeLowUSD:     md.ATL["usd"],
		AllTimeLowDate:    md.ATLDate["usd"],
	}, nil
}

// FetchPriceHistory returns the USD price series for the last `days` days.
func (c *Client) FetchPriceHistory(ctx context.Context, id string, days int) ([]models.PricePoint, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))

	var resp marketChartResponse
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", q, &resp); err != nil {
		return nil, err
	}

	points := make([]models.PricePoint, 0, len(resp.Prices))
	for _, pair := range resp.Prices {
		if len(pair) != 2 {
			c.log.Warnf("market_chart: skipping malformed price pair for %s", id)
			continue
		}
		points = append(points, models.PricePoint{
			TimestampMs: pair[0].IntPart(),
			PriceUSD:    pair[1],
		})
	}
	return points, nil
}

// FetchQuotes returns current price and 24h change for the given coin ids in
// one batched call. Ids unknown to the API are absent from the result map.
func (c *Client) FetchQuotes(ctx context.Context, ids []string) (map[string]models.PriceQuote, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")

	var rows map[string]simplePriceRow
	if err := c.getJSON(ctx, "/simple/price", q, &rows); err != nil {
		return nil, err
	}

	quotes := make(map[string]models.PriceQuote, len(rows))
	for id, r := range rows {
		quotes[id] = models.PriceQuote{
			USD:          orZero(r.USD),
			USD24hChange: orZero(r.USD24hChange),
		}
	}
	return quotes, nil
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}

func rankOrZero(r *int64) int64 {
	if r != nil {
		return *r
	}
	return 0
}
