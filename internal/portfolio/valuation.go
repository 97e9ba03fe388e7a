package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"hodler/internal/models"
)

var hundred = decimal.NewFromInt(100)

// HoldingValuation wraps one purchase lot with its current worth. All
// division is guarded: a zero cost basis or zero baseline yields a zero
// percentage instead of blowing up.
type HoldingValuation struct {
	Holding              models.Holding  `json:"holding"`
	CurrentPrice         decimal.Decimal `json:"current_price"`
	CurrentValue         decimal.Decimal `json:"current_value"`
	CostBasis            decimal.Decimal `json:"cost_basis"`
	ProfitLoss           decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent    decimal.Decimal `json:"profit_loss_percent"`
	ProfitLoss24h        decimal.Decimal `json:"profit_loss_24h"`
	ProfitLossPercent24h decimal.Decimal `json:"profit_loss_percent_24h"`
}

// CoinGroup aggregates every lot of one coin. Constituent lots are ordered
// by purchase date, most recent first.
type CoinGroup struct {
	CoinID                 string             `json:"coin_id"`
	CoinSymbol             string             `json:"coin_symbol"`
	CoinName               string             `json:"coin_name"`
	ImageURL               string             `json:"image_url"`
	TotalAmount            decimal.Decimal    `json:"total_amount"`
	AverageCostBasis       decimal.Decimal    `json:"average_cost_basis"`
	TotalCostBasis         decimal.Decimal    `json:"total_cost_basis"`
	TotalCurrentValue      decimal.Decimal    `json:"total_current_value"`
	TotalProfitLoss        decimal.Decimal    `json:"total_profit_loss"`
	TotalProfitLossPercent decimal.Decimal    `json:"total_profit_loss_percent"`
	Holdings               []HoldingValuation `json:"holdings"`
	HoldingCount           int                `json:"holding_count"`
}

// Summary is the whole-portfolio roll-up.
type Summary struct {
	CoinsOwned                int             `json:"coins_owned"`
	TotalValue                decimal.Decimal `json:"total_value"`
	TotalCostBasis            decimal.Decimal `json:"total_cost_basis"`
	TotalProfitLoss           decimal.Decimal `json:"total_profit_loss"`
	TotalProfitLossPercent    decimal.Decimal `json:"total_profit_loss_percent"`
	TotalProfitLoss24h        decimal.Decimal `json:"total_profit_loss_24h"`
	TotalProfitLossPercent24h decimal.Decimal `json:"total_profit_loss_percent_24h"`
}

// Valuate prices one holding against its quote. A nil quote (price unknown)
// values the lot at zero, which reads as a full loss against its cost basis.
func Valuate(h models.Holding, q *models.PriceQuote) HoldingValuation {
	currentPrice := decimal.Zero
	change := decimal.Zero
	if q != nil {
		currentPrice = q.USD
		change = q.USD24hChange
	}

	currentValue := currentPrice.Mul(h.Amount)
	costBasis := h.PurchasePrice.Mul(h.Amount)
	profitLoss := currentValue.Sub(costBasis)

	profitLossPercent := decimal.Zero
	if costBasis.IsPositive() {
		profitLossPercent = profitLoss.Div(costBasis).Mul(hundred)
	}

	// Only the 24h delta percent is available, not a historical price, so
	// the 24h-ago baseline is backed out of the current price. A zero change
	// keeps the baseline at the current price, pinning the 24h percent to 0.
	price24hAgo := currentPrice
	if !change.IsZero() {
		denom := decimal.New(1, 0).Add(change.Div(hundred))
		if !denom.IsZero() {
			price24hAgo = currentPrice.Div(denom)
		}
	}

	profitLoss24h := currentPrice.Sub(price24hAgo).Mul(h.Amount)
	profitLossPercent24h := decimal.Zero
	if price24hAgo.IsPositive() {
		profitLossPercent24h = currentPrice.Sub(price24hAgo).Div(price24hAgo).Mul(hundred)
	}

	return HoldingValuation{
		Holding:              h,
		CurrentPrice:         currentPrice,
		CurrentValue:         currentValue,
		CostBasis:            costBasis,
		ProfitLoss:           profitLoss,
		ProfitLossPercent:    profitLossPercent,
		ProfitLoss24h:        profitLoss24h,
		ProfitLossPercent24h: profitLossPercent24h,
	}
}

// ValuateAll prices every holding, matching quotes by coin id. Holdings whose
// coin id has no quote get a nil quote.
func ValuateAll(holdings []models.Holding, quotes map[string]models.PriceQuote) []HoldingValuation {
	vals := make([]HoldingValuation, 0, len(holdings))
	for _, h := range holdings {
		var q *models.PriceQuote
		if quote, ok := quotes[h.CoinID]; ok {
			q = &quote
		}
		vals = append(vals, Valuate(h, q))
	}
	return vals
}

// DistinctCoinIDs returns the deduplicated coin ids across holdings in first
// occurrence order, for batched quote lookups.
func DistinctCoinIDs(holdings []models.Holding) []string {
	seen := make(map[string]struct{}, len(holdings))
	ids := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if _, ok := seen[h.CoinID]; ok {
			continue
		}
		seen[h.CoinID] = struct{}{}
		ids = append(ids, h.CoinID)
	}
	return ids
}

// GroupByCoin buckets valuations by coin id. Groups are ordered by current
// value, largest first, with coin id as the tie-break; lots within a group
// are ordered by purchase date, most recent first.
func GroupByCoin(vals []HoldingValuation) []CoinGroup {
	byCoin := make(map[string]*CoinGroup)
	order := []string{}
	for _, v := range vals {
		g, ok := byCoin[v.Holding.CoinID]
		if !ok {
			g = &CoinGroup{
				CoinID:     v.Holding.CoinID,
				CoinSymbol: v.Holding.CoinSymbol,
				CoinName:   v.Holding.CoinName,
				ImageURL:   v.Holding.ImageURL,
			}
			byCoin[v.Holding.CoinID] = g
			order = append(order, v.Holding.CoinID)
		}
		g.Holdings = append(g.Holdings, v)
		g.TotalAmount = g.TotalAmount.Add(v.Holding.Amount)
		g.TotalCostBasis = g.TotalCostBasis.Add(v.CostBasis)
		g.TotalCurrentValue = g.TotalCurrentValue.Add(v.CurrentValue)
		g.TotalProfitLoss = g.TotalProfitLoss.Add(v.ProfitLoss)
	}

	groups := make([]CoinGroup, 0, len(order))
	for _, id := range order {
		g := byCoin[id]
		if g.TotalAmount.IsPositive() {
			g.AverageCostBasis = g.TotalCostBasis.Div(g.TotalAmount)
		}
		if g.TotalCostBasis.IsPositive() {
			g.TotalProfitLossPercent = g.TotalProfitLoss.Div(g.TotalCostBasis).Mul(hundred)
		}
		g.HoldingCount = len(g.Holdings)
		sort.SliceStable(g.Holdings, func(i, j int) bool {
			return g.Holdings[i].Holding.PurchaseDateMs > g.Holdings[j].Holding.PurchaseDateMs
		})
		groups = append(groups, *g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].TotalCurrentValue.Equal(groups[j].TotalCurrentValue) {
			return groups[i].TotalCurrentValue.GreaterThan(groups[j].TotalCurrentValue)
		}
		return groups[i].CoinID < groups[j].CoinID
	})
	return groups
}

// Summarize rolls every valuation into the whole-portfolio figures. The 24h
// percent is taken against the portfolio's derived value 24 hours ago.
func Summarize(vals []HoldingValuation) Summary {
	s := Summary{}
	coins := make(map[string]struct{})
	for _, v := range vals {
		coins[v.Holding.CoinID] = struct{}{}
		s.TotalValue = s.TotalValue.Add(v.CurrentValue)
		s.TotalCostBasis = s.TotalCostBasis.Add(v.CostBasis)
		s.TotalProfitLoss = s.TotalProfitLoss.Add(v.ProfitLoss)
		s.TotalProfitLoss24h = s.TotalProfitLoss24h.Add(v.ProfitLoss24h)
	}
	s.CoinsOwned = len(coins)

	if s.TotalCostBasis.IsPositive() {
		s.TotalProfitLossPercent = s.TotalProfitLoss.Div(s.TotalCostBasis).Mul(hundred)
	}
	value24hAgo := s.TotalValue.Sub(s.TotalProfitLoss24h)
	if value24hAgo.IsPositive() {
		s.TotalProfitLossPercent24h = s.TotalProfitLoss24h.Div(value24hAgo).Mul(hundred)
	}
	return s
}
