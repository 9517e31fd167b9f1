package status

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/liveprice/internal/connection"
	"github.com/rickgao/liveprice/internal/model"
)

// quoteJSON is the wire form of a quote.
type quoteJSON struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Change     float64   `json:"change"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	ObservedAt time.Time `json:"observedAt"`
}

func toJSON(q model.PriceQuote) quoteJSON {
	return quoteJSON{
		Symbol:     q.Symbol,
		Price:      q.Price,
		Change:     q.Change,
		High:       q.High,
		Low:        q.Low,
		ObservedAt: q.ObservedAt,
	}
}

func (s *Server) health(c *gin.Context) {
	state := s.src.State()

	// Only a live connection is up
	code, status := http.StatusServiceUnavailable, "down"
	switch state {
	case connection.StateConnected:
		code, status = http.StatusOK, "up"
	case connection.StateConnecting:
		code, status = http.StatusOK, "degraded"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"state":     state,
		"connected": state == connection.StateConnected,
	})
}

func (s *Server) prices(c *gin.Context) {
	var filter map[string]struct{}
	if raw := c.Query("symbols"); raw != "" {
		filter = model.SymbolSet(strings.Split(raw, ","))
	}

	table := s.src.Table().Filter(filter)
	out := make(map[string]quoteJSON, len(table))
	for sym, q := range table {
		out[sym] = toJSON(q)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) price(c *gin.Context) {
	sym := model.NormalizeSymbol(c.Param("symbol"))
	q, ok := s.src.Price(sym)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol " + sym})
		return
	}
	c.JSON(http.StatusOK, toJSON(q))
}

func (s *Server) stats(c *gin.Context) {
	body := gin.H{"hub": s.src.Stats()}
	for name, fn := range s.extras {
		body[name] = fn()
	}
	c.JSON(http.StatusOK, body)
}
