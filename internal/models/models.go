package models

import "github.com/shopspring/decimal"

// CoinSnapshot is one row of the cached market list. Exactly one snapshot
// exists per coin id; upserts replace by id.
type CoinSnapshot struct {
	ID            string          `db:"id" json:"id"`
	Symbol        string          `db:"symbol" json:"symbol"`
	Name          string          `db:"name" json:"name"`
	Image         string          `db:"image" json:"image"`
	CurrentPrice  decimal.Decimal `db:"current_price" json:"current_price"`
	Change24h     decimal.Decimal `db:"change_24h" json:"price_change_percentage_24h"`
	MarketCap     decimal.Decimal `db:"market_cap" json:"market_cap"`
	MarketCapRank int64           `db:"market_cap_rank" json:"market_cap_rank"`
	LastUpdatedMs int64           `db:"last_updated_ms" json:"last_updated_ms"`
}

// CoinDetailSnapshot extends CoinSnapshot with the fields shown on a coin
// detail screen. Supply figures are nullable: some coins never report them.
type CoinDetailSnapshot struct {
	ID                string              `db:"id" json:"id"`
	Symbol            string              `db:"symbol" json:"symbol"`
	Name              string              `db:"name" json:"name"`
	Image             string              `db:"image" json:"image"`
	CurrentPrice      decimal.Decimal     `db:"current_price" json:"current_price"`
	Change24h         decimal.Decimal     `db:"change_24h" json:"price_change_percentage_24h"`
	MarketCapUSD      decimal.Decimal     `db:"market_cap_usd" json:"market_cap_usd"`
	TotalVolumeUSD    decimal.Decimal     `db:"total_volume_usd" json:"total_volume_usd"`
	CirculatingSupply decimal.NullDecimal `db:"circulating_supply" json:"circulating_supply"`
	TotalSupply       decimal.NullDecimal `db:"total_supply" json:"total_supply"`
	MaxSupply         decimal.NullDecimal `db:"max_supply" json:"max_supply"`
	AllTimeHighUSD    decimal.Decimal     `db:"ath_usd" json:"ath_usd"`
	AllTimeHighDate   string              `db:"ath_date" json:"ath_date"`
	AllTimeLowUSD     decimal.Decimal     `db:"atl_usd" json:"atl_usd"`
	AllTimeLowDate    string              `db:"atl_date" json:"atl_date"`
	LastUpdatedMs     int64               `db:"last_updated_ms" json:"last_updated_ms"`
}

// PriceQuote is a transient current-price lookup result, never persisted on
// its own. Batched quote fetches return one per requested coin id.
type PriceQuote struct {
	USD          decimal.Decimal `json:"usd"`
	USD24hChange decimal.Decimal `json:"usd_24h_change"`
}

// PricePoint is one sample of a historical price series.
type PricePoint struct {
	TimestampMs int64           `json:"timestamp_ms"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
}

// Holding is a user-recorded purchase lot. The ledger owns these rows; the
// portfolio aggregator only reads them.
type Holding struct {
	ID             int64           `db:"id" json:"id"`
	CoinID         string          `db:"coin_id" json:"coin_id"`
	CoinSymbol     string          `db:"coin_symbol" json:"coin_symbol"`
	CoinName       string          `db:"coin_name" json:"coin_name"`
	ImageURL       string          `db:"image_url" json:"image_url"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	PurchasePrice  decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	PurchaseDateMs int64           `db:"purchase_date_ms" json:"purchase_date_ms"`
}
