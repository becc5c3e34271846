package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopdesk/internal/domain/analytics"
	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var (
		badReq     *BadRequestError
		productErr *product.ValidationError
		discErr    *discount.ValidationError
		orderErr   *order.ValidationError
		missingErr *order.ProductNotFoundError
		lineErr    *pricing.ValidationError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.As(err, &productErr),
		errors.As(err, &discErr),
		errors.As(err, &orderErr),
		errors.As(err, &missingErr),
		errors.As(err, &lineErr),
		errors.Is(err, pricing.ErrNoLines),
		errors.Is(err, analytics.ErrInvalidTimeRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, discount.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, analytics.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"code", "message"}. Internal errors are logged
// and their details are not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = http.StatusText(status)
	case http.StatusServiceUnavailable:
		zctx.From(r.Context()).Warn("Dependency unavailable", zap.Error(err))
		msg = analytics.ErrUnavailable.Error()
	}
	writeMessage(w, status, msg)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}
