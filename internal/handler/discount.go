package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/shopdesk/internal/domain/discount"
)

// ListDiscounts returns every discount.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.discounts.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeDiscount(e, &list[i])
			}
		})
	})
}

// CreateDiscount adds a discount from
// {name, type, value, code?, startDate, endDate}.
func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var (
		req       discount.CreateRequest
		valueSeen bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			req.Name, err = decodeOptStr(d)
		case "type":
			req.Kind, err = decodeOptStr(d)
		case "value":
			req.Value, err = decodeDecimal(d)
			valueSeen = true
		case "code":
			req.Code, err = decodeOptStr(d)
		case "startDate":
			req.StartDate, err = h.decodeDate(d)
		case "endDate":
			req.EndDate, err = h.decodeDate(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !valueSeen {
		writeError(w, r, &discount.ValidationError{Field: "value", Reason: "is required"})
		return
	}

	created, err := h.discounts.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeDiscount(e, created) })
}

// ApplyDiscount reports the type and value of the discount currently active
// for ?code=.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, r, badRequest("discount code is required"))
		return
	}

	res, err := h.discounts.Resolve(r.Context(), code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Outcome != discount.OutcomeApplied {
		writeMessage(w, http.StatusNotFound, "invalid discount code")
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("type", func(e *jx.Encoder) { e.Str(string(res.Discount.Kind)) })
			e.Field("value", func(e *jx.Encoder) { encodeMoney(e, res.Discount.Value) })
		})
	})
}

func (h *Handler) decodeDate(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return parseDate(s, h.loc)
}

func encodeDiscount(e *jx.Encoder, d *discount.Discount) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(d.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(d.Name) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(d.Kind)) })
		e.Field("value", func(e *jx.Encoder) { encodeMoney(e, d.Value) })
		e.Field("code", func(e *jx.Encoder) {
			if d.Code == "" {
				e.Null()
				return
			}
			e.Str(d.Code)
		})
		e.Field("startDate", func(e *jx.Encoder) { encodeTime(e, d.StartDate) })
		e.Field("endDate", func(e *jx.Encoder) { encodeTime(e, d.EndDate) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, d.CreatedAt) })
	})
}
