package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/groundqa/internal/pkg/response"
)

// IndexStatus reports the serving index, implemented by index.Holder.
type IndexStatus interface {
	Len() int
	Version() string
}

// QuoteStats reports running quote totals, implemented by
// highlight.Highlighter.
type QuoteStats interface {
	Stats() (extracted int64, matched int64)
}

type HealthHandler struct {
	index     IndexStatus
	quotes    QuoteStats
	providers []string
}

func NewHealthHandler(index IndexStatus, quotes QuoteStats, providers []string) *HealthHandler {
	return &HealthHandler{index: index, quotes: quotes, providers: providers}
}

func (h *HealthHandler) Health(c *gin.Context) {
	extracted, matched := h.quotes.Stats()
	var rate float64
	if extracted > 0 {
		rate = float64(matched) / float64(extracted)
	}
	response.Success(c, gin.H{
		"status":           "ok",
		"index_chunks":     h.index.Len(),
		"index_version":    h.index.Version(),
		"providers":        h.providers,
		"quotes_extracted": extracted,
		"quotes_matched":   matched,
		"quote_match_rate": rate,
	})
}
