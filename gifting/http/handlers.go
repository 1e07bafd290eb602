package http

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/tushevents/gifting-tools/gifting"
)

// RegistryOverviewHandler serves an aggregate view of the registry: funding
// totals across the catalog plus the locally recorded receipts.
func RegistryOverviewHandler(client Client, receiptStore gifting.ReceiptStore) func(*gin.Context) {
	return func(c *gin.Context) {
		gifts, err := client.ListGifts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal server error",
				"details": err.Error(),
			})
			return
		}

		var goalMinor, raisedMinor int64
		completed := 0

		for _, gift := range gifts {
			goalMinor += gift.Amount
			raisedMinor += gift.RaisedAmount
			if gift.IsCompleted {
				completed++
			}
		}

		percentFunded := 0.0
		if goalMinor > 0 {
			percentFunded = float64(raisedMinor) / float64(goalMinor) * 100
		}

		receipts, err := receiptStore.ListReceipts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal server error",
				"details": err.Error(),
			})
			return
		}

		if receipts == nil {
			receipts = []gifting.Receipt{}
		}

		sort.Slice(gifts, func(i, j int) bool {
			return gifts[i].Progress > gifts[j].Progress
		})

		c.JSON(http.StatusOK, gin.H{
			"giftCount":     len(gifts),
			"goal":          goalMinor,
			"raised":        raisedMinor,
			"percentFunded": percentFunded,
			"completed":     completed,
			"gifts":         gifts,
			"receipts":      receipts,
		})
	}
}
