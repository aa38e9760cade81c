package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stockwarehouse/internal/models"
	"stockwarehouse/internal/repository"
)

const dateLayout = "2006-01-02"

// PriceHandler serves read-only queries over the gold view.
type PriceHandler struct {
	queries *repository.QueryRepository
	assets  *repository.AssetRepository
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(queries *repository.QueryRepository, assets *repository.AssetRepository) *PriceHandler {
	return &PriceHandler{
		queries: queries,
		assets:  assets,
	}
}

// Prices handles GET /prices?symbols=AAPL,MSFT&from=2024-01-01&to=2024-12-31
func (h *PriceHandler) Prices(c *gin.Context) {
	symbols := splitSymbols(c.Query("symbols"))

	from, err := parseDate(c.Query("from"), time.Now().AddDate(-1, 0, 0))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "from must be YYYY-MM-DD",
		})
		return
	}
	to, err := parseDate(c.Query("to"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "to must be YYYY-MM-DD",
		})
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "to must not precede from",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	prices, err := h.queries.Prices(c.Request.Context(), symbols, from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(prices), "prices": prices})
}

// Latest handles GET /prices/latest?symbols=AAPL,MSFT
func (h *PriceHandler) Latest(c *gin.Context) {
	prices, err := h.queries.LatestPrices(c.Request.Context(), splitSymbols(c.Query("symbols")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(prices), "prices": prices})
}

// Summary handles GET /prices/:symbol/summary?days=30
func (h *PriceHandler) Summary(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 || days > 3650 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "days must be a positive integer up to 3650",
		})
		return
	}

	summary, err := h.queries.SymbolSummary(c.Request.Context(), symbol, days)
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "not_found",
				Message: "no prices for " + symbol + " in requested window",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Symbols handles GET /symbols
func (h *PriceHandler) Symbols(c *gin.Context) {
	symbols, err := h.queries.Symbols(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(symbols), "symbols": symbols})
}

// Asset handles GET /assets/:symbol
func (h *PriceHandler) Asset(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	asset, err := h.assets.GetBySymbol(c.Request.Context(), symbol, string(models.AssetTypeStock))
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "not_found",
				Message: "unknown symbol " + symbol,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, asset)
}

// DateRange handles GET /date-range
func (h *PriceHandler) DateRange(c *gin.Context) {
	dr, err := h.queries.DateRange(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, dr)
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			symbols = append(symbols, p)
		}
	}
	return symbols
}

func parseDate(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	return time.Parse(dateLayout, raw)
}
