package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	for tag, valid := range enumValidators {
		valid := valid
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		})
	}
	return v
}

// enumValidators back the custom struct tags on OrderRequest with the
// enumerations' own Valid methods.
var enumValidators = map[string]func(string) bool{
	"side":          func(s string) bool { return Side(s).Valid() },
	"order_kind":    func(s string) bool { return OrderKind(s).Valid() },
	"time_in_force": func(s string) bool { return TimeInForce(s).Valid() },
}

var enumChoices = map[string]string{
	"side":          "buy, sell",
	"order_kind":    "market, limit, stop, stop_limit",
	"time_in_force": "GTC, IOC, FOK",
}

// normalizeRequest canonicalises casing and defaults before validation so
// "BUY" and "buy" are the same request.
func normalizeRequest(req OrderRequest) OrderRequest {
	req.Symbol = NormalizeSymbol(req.Symbol)
	req.Side = Side(strings.ToLower(strings.TrimSpace(string(req.Side))))
	req.Kind = OrderKind(strings.ToLower(strings.TrimSpace(string(req.Kind))))
	req.TimeInForce = TimeInForce(strings.ToUpper(strings.TrimSpace(string(req.TimeInForce))))
	if req.TimeInForce == "" {
		req.TimeInForce = GTC
	}
	return req
}

// ValidateRequest normalises req and checks every field the execution
// engine depends on. It returns the normalised request.
func ValidateRequest(req OrderRequest) (OrderRequest, error) {
	req = normalizeRequest(req)
	if err := requestValidator.Struct(req); err != nil {
		return req, toValidationError(err)
	}
	if !req.Quantity.IsPositive() {
		return req, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if req.Kind.NeedsLimitPrice() && req.LimitPrice == nil {
		return req, &ValidationError{Field: "limit_price", Reason: fmt.Sprintf("is required for %s orders", req.Kind)}
	}
	if req.Kind.NeedsStopPrice() && req.StopPrice == nil {
		return req, &ValidationError{Field: "stop_price", Reason: fmt.Sprintf("is required for %s orders", req.Kind)}
	}
	for _, f := range []struct {
		name string
		val  *decimal.Decimal
	}{
		{"limit_price", req.LimitPrice},
		{"stop_price", req.StopPrice},
		{"stop_loss", req.StopLoss},
		{"take_profit", req.TakeProfit},
	} {
		if f.val != nil && !f.val.IsPositive() {
			return req, &ValidationError{Field: f.name, Reason: "must be positive"}
		}
	}
	return req, nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: fe.Field(), Reason: "is required"}
	case "side", "order_kind", "time_in_force":
		return &ValidationError{Field: fe.Field(), Reason: "must be one of " + enumChoices[fe.Tag()]}
	default:
		return &ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag()}
	}
}
