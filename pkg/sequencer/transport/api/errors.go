package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/application/usecase"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"
)

type itemResult struct {
	ID    string `json:"id"`
	Order int    `json:"order,omitempty"`
	Error string `json:"error,omitempty"`
}

type errorResponse struct {
	Success bool         `json:"success"`
	ID      string       `json:"id,omitempty"`
	Error   string       `json:"error"`
	Stale   bool         `json:"stale,omitempty"`
	Results []itemResult `json:"results,omitempty"`
}

// statusOf maps an error kind onto an HTTP status.
func statusOf(err error) int {
	switch {
	case exception.IsNotFound(err):
		return http.StatusNotFound
	case exception.IsPermission(err):
		return http.StatusForbidden
	case exception.IsValidation(err), exception.IsPartialBatch(err), exception.IsRecalculation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the failure of a use case. Per-item results of an order batch
// are included so callers see which items were applied.
func abortWithError(c *gin.Context, err error, res *usecase.Result) {
	_ = c.Error(err)
	body := errorResponse{Error: exception.ExtractErrorMessage(err)}
	if res != nil {
		body.ID = res.ID
		body.Stale = res.Stale
		if res.Batch != nil {
			for _, item := range res.Batch.Items {
				r := itemResult{ID: item.ID, Order: item.Order}
				if item.Err != nil {
					r.Error = item.Err.Error()
				}
				body.Results = append(body.Results, r)
			}
		}
	}
	c.AbortWithStatusJSON(statusOf(err), body)
}

// badRequest rejects malformed input before it reaches a use case.
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}
