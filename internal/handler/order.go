package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
)

// QuoteOrder prices {items, discountCode?} without persisting anything.
func (h *Handler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	var (
		lines []pricing.Line
		code  string
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items", "orderItems":
			lines, err = decodeLines(d)
		case "discountCode":
			code, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	q, err := h.orders.Quote(r.Context(), lines, code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			encodeTotals(e, q.Totals)
			e.Field("discount", func(e *jx.Encoder) { encodeResolution(e, q.Discount) })
		})
	})
}

// PlaceOrder creates an order from
// {customerName, deliveryAddress, orderItems, discountCode?}.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrderRequest
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customerName":
			req.CustomerName, err = decodeOptStr(d)
		case "deliveryAddress":
			req.DeliveryAddress, err = decodeOptStr(d)
		case "orderItems", "items":
			req.Items, err = decodeLines(d)
		case "discountCode":
			req.DiscountCode, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, res.Order, res.Totals, func(e *jx.Encoder) {
			e.Field("discountResult", func(e *jx.Encoder) { encodeResolution(e, res.Discount) })
		})
	})
}

// GetOrder returns a single order with live totals.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o, o.Totals(), nil)
	})
}

// ListOrders returns orders newest first, filtered by the status, q, from
// and to query parameters.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	f, err := h.parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeOrder(e, &list[i], list[i].Totals(), nil)
			}
		})
	})
}

func (h *Handler) parseFilter(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	f := order.Filter{Query: strings.TrimSpace(q.Get("q"))}

	if s := q.Get("status"); s != "" && !strings.EqualFold(s, "all") {
		st, err := order.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if s := q.Get("from"); s != "" {
		t, err := parseDate(s, h.loc)
		if err != nil {
			return f, &BadRequestError{Err: err}
		}
		f.From = t
	}
	if s := q.Get("to"); s != "" {
		t, err := parseEndDate(s, h.loc)
		if err != nil {
			return f, &BadRequestError{Err: err}
		}
		f.To = t
	}
	return f, nil
}

func decodeLines(d *jx.Decoder) ([]pricing.Line, error) {
	lines := []pricing.Line{}
	err := d.Arr(func(d *jx.Decoder) error {
		var l pricing.Line
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "productId":
				l.ProductID, err = decodeID(d)
			case "quantity":
				l.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

// decodeID accepts string or numeric identifiers.
func decodeID(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Number {
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	}
	return d.Str()
}

func encodeTotals(e *jx.Encoder, t pricing.Totals) {
	t = t.Round()
	e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, t.Subtotal) })
	e.Field("discountAmount", func(e *jx.Encoder) { encodeMoney(e, t.DiscountAmount) })
	e.Field("total", func(e *jx.Encoder) { encodeMoney(e, t.Total) })
}

func encodeResolution(e *jx.Encoder, res discount.Resolution) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(string(res.Outcome)) })
		if res.Code != "" {
			e.Field("code", func(e *jx.Encoder) { e.Str(res.Code) })
		}
		if res.Discount != nil {
			e.Field("type", func(e *jx.Encoder) { e.Str(string(res.Discount.Kind)) })
			e.Field("value", func(e *jx.Encoder) { encodeMoney(e, res.Discount.Value) })
		}
	})
}

// encodeOrder writes o with its items, discount and totals. extra, when set,
// appends fields to the object.
func encodeOrder(e *jx.Encoder, o *order.Order, totals pricing.Totals, extra func(e *jx.Encoder)) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("customerName", func(e *jx.Encoder) { e.Str(o.CustomerName) })
		e.Field("deliveryAddress", func(e *jx.Encoder) { e.Str(o.DeliveryAddress) })
		e.Field("orderDate", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("orderItems", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("product", func(e *jx.Encoder) {
							if it.Product == nil {
								e.Null()
								return
							}
							encodeProduct(e, it.Product)
						})
					})
				}
			})
		})
		e.Field("discount", func(e *jx.Encoder) {
			if o.Discount == nil {
				e.Null()
				return
			}
			encodeDiscount(e, o.Discount)
		})
		encodeTotals(e, totals)
		if extra != nil {
			extra(e)
		}
	})
}
