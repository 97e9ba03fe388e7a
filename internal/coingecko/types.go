package coingecko

import "github.com/shopspring/decimal"

// Wire types for the CoinGecko v3 API. Numeric fields decode straight into
// decimals; anything the API reports as null stays a NullDecimal.

type marketRow struct {
	ID            string              `json:"id"`
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name"`
	Image         string              `json:"image"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	Change24h     decimal.NullDecimal `json:"price_change_percentage_24h"`
	MarketCap     decimal.NullDecimal `json:"market_cap"`
	MarketCapRank *int64              `json:"market_cap_rank"`
}

type coinDetailResponse struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Image  struct {
		Large string `json:"large"`
	} `json:"image"`
	MarketData struct {
		CurrentPrice      map[string]decimal.Decimal `json:"current_price"`
		Change24h         decimal.NullDecimal        `json:"price_change_percentage_24h"`
		MarketCap         map[string]decimal.Decimal `json:"market_cap"`
		TotalVolume       map[string]decimal.Decimal `json:"total_volume"`
		CirculatingSupply decimal.NullDecimal        `json:"circulating_supply"`
		TotalSupply       decimal.NullDecimal        `json:"total_supply"`
		MaxSupply         decimal.NullDecimal        `json:"max_supply"`
		ATH               map[string]decimal.Decimal `json:"ath"`
		ATHDate           map[string]string          `json:"ath_date"`
		ATL               map[string]decimal.Decimal `json:"atl"`
		ATLDate           map[string]string          `json:"atl_date"`
	} `json:"market_data"`
}

type marketChartResponse struct {
	Prices [][]decimal.Decimal `json:"prices"`
}

type simplePriceRow struct {
	USD          decimal.NullDecimal `json:"usd"`
	USD24hChange decimal.NullDecimal `json:"usd_24h_change"`
}
