package deskhttp

import (
	"errors"
	"net/http"

	"papertrade/internal/ledger"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeError maps ledger failures to status codes.
func writeError(c *gin.Context, err error) {
	var (
		ve *ledger.ValidationError
		us *ledger.UnknownSymbolError
		ib *ledger.InsufficientBalanceError
		nf *ledger.NotFoundError
		is *ledger.InvalidStateError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation", Message: err.Error(), Field: ve.Field})
	case errors.As(err, &us):
		c.JSON(http.StatusNotFound, errorBody{Error: "unknown_symbol", Message: err.Error()})
	case errors.As(err, &ib):
		c.JSON(http.StatusUnprocessableEntity, errorBody{Error: "insufficient_balance", Message: err.Error()})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
	case errors.As(err, &is):
		c.JSON(http.StatusConflict, errorBody{Error: "invalid_state", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal", Message: err.Error()})
	}
}

func badRequest(c *gin.Context, field, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "validation", Message: msg, Field: field})
}
