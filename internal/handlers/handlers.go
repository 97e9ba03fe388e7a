package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"hodler/internal/coingecko"
	"hodler/internal/database"
	"hodler/internal/models"
	"hodler/internal/portfolio"
	"hodler/internal/repository"
)

type Handler struct {
	repo    *repository.Repo
	ledger  *database.Ledger
	tracker *portfolio.Tracker
	log     *logrus.Logger
}

func NewHandler(repo *repository.Repo, ledger *database.Ledger, tracker *portfolio.Tracker, log *logrus.Logger) *Handler {
	return &Handler{repo: repo, ledger: ledger, tracker: tracker, log: log}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/coins", h.GetCoins)
	r.GET("/coins/:id", h.GetCoin)
	r.GET("/coins/:id/detail", h.GetCoinDetail)
	r.GET("/coins/:id/history", h.GetCoinHistory)
	r.GET("/quotes", h.GetQuotes)

	r.GET("/holdings", h.GetHoldings)
	r.POST("/holdings", h.PostHolding)
	r.GET("/holdings/:id", h.GetHolding)
	r.PUT("/holdings/:id", h.PutHolding)
	r.DELETE("/holdings/:id", h.DeleteHolding)

	r.GET("/portfolio", h.GetPortfolio)
	r.POST("/portfolio/refresh", h.RefreshPortfolio)
	r.GET("/ws/portfolio", h.StreamPortfolio)
}

func (h *Handler) fail(c *gin.Context, err error, what string) {
	if errors.Is(err, coingecko.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.log.Errorf("%s failed: %v", what, err)
	c.JSON(http.StatusBadGateway, gin.H{"error": what + " failed"})
}

func (h *Handler) GetCoins(c *gin.Context) {
	env, err := h.repo.MarketList(c.Request.Context())
	if err != nil {
		h.fail(c, err, "market list")
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *Handler) GetCoin(c *gin.Context) {
	env, err := h.repo.CoinByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "coin lookup")
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *Handler) GetCoinDetail(c *gin.Context) {
	env, err := h.repo.CoinDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "coin detail")
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *Handler) GetCoinHistory(c *gin.Context) {
	days := 7
	if v := c.Query("days"); v != "" {
		iv, err := strconv.Atoi(v)
		if err != nil || iv <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = iv
	}
	env, err := h.repo.PriceHistory(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		h.fail(c, err, "price history")
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *Handler) GetQuotes(c *gin.Context) {
	ids := c.QueryArray("ids")
	if len(ids) == 1 {
		ids = splitCSV(ids[0])
	}
	env, err := h.repo.Quotes(c.Request.Context(), ids)
	if err != nil {
		h.fail(c, err, "quote lookup")
		return
	}
	c.JSON(http.StatusOK, env)
}

type holdingRequest struct {
	CoinID         string          `json:"coin_id" binding:"required"`
	CoinSymbol     string          `json:"coin_symbol"`
	CoinName       string          `json:"coin_name"`
	ImageURL       string          `json:"image_url"`
	Amount         decimal.Decimal `json:"amount"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	PurchaseDateMs int64           `json:"purchase_date_ms"`
}

func (r holdingRequest) toModel() models.Holding {
	return models.Holding{
		CoinID:         r.CoinID,
		CoinSymbol:     r.CoinSymbol,
		CoinName:       r.CoinName,
		ImageURL:       r.ImageURL,
		Amount:         r.Amount,
		PurchasePrice:  r.PurchasePrice,
		PurchaseDateMs: r.PurchaseDateMs,
	}
}

func (h *Handler) bindHolding(c *gin.Context) (models.Holding, bool) {
	var req holdingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid holding body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Holding{}, false
	}
	if req.Amount.IsNegative() || req.PurchasePrice.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount and purchase_price must not be negative"})
		return models.Holding{}, false
	}
	return req.toModel(), true
}

func (h *Handler) GetHoldings(c *gin.Context) {
	holdings, err := h.ledger.GetAll(c.Request.Context())
	if err != nil {
		h.log.Errorf("list holdings failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, holdings)
}

func (h *Handler) GetHolding(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid holding id"})
		return
	}
	holding, err := h.ledger.GetByID(c.Request.Context(), id)
	if err != nil {
		h.log.Errorf("get holding failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if holding == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "holding not found"})
		return
	}
	c.JSON(http.StatusOK, holding)
}

func (h *Handler) PostHolding(c *gin.Context) {
	holding, ok := h.bindHolding(c)
	if !ok {
		return
	}
	id, err := h.ledger.Insert(c.Request.Context(), holding)
	if err != nil {
		h.log.Errorf("insert holding failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insert failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) PutHolding(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid holding id"})
		return
	}
	holding, ok := h.bindHolding(c)
	if !ok {
		return
	}
	holding.ID = id
	if err := h.ledger.Update(c.Request.Context(), holding); err != nil {
		h.log.Errorf("update holding failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) DeleteHolding(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid holding id"})
		return
	}
	n, err := h.ledger.DeleteByID(c.Request.Context(), id)
	if err != nil {
		h.log.Errorf("delete holding failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "holding not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Current())
}

func (h *Handler) RefreshPortfolio(c *gin.Context) {
	h.tracker.Refresh()
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

func splitCSV(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
