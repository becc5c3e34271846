package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/shopdesk/internal/domain/analytics"
)

// Dashboard returns the summary counters and best sellers.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.reports.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("totalProducts", func(e *jx.Encoder) { e.Int(d.TotalProducts) })
			e.Field("totalOrders", func(e *jx.Encoder) { e.Int(d.TotalOrders) })
			e.Field("totalRevenue", func(e *jx.Encoder) { encodeMoney(e, d.TotalRevenue) })
			e.Field("popularProducts", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, p := range d.TopProducts {
						e.Obj(func(e *jx.Encoder) {
							e.Field("productId", func(e *jx.Encoder) { e.Str(p.ProductID) })
							e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
							e.Field("sales", func(e *jx.Encoder) { e.Int64(p.Quantity) })
						})
					}
				})
			})
		})
	})
}

// Analytics returns chart series for ?timeRange=week|month|year.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	s, err := h.reports.Sales(r.Context(), r.URL.Query().Get("timeRange"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("timeRange", func(e *jx.Encoder) { e.Str(string(s.TimeRange)) })
			e.Field("startDate", func(e *jx.Encoder) { encodeTime(e, s.Start) })
			e.Field("salesTrend", func(e *jx.Encoder) {
				encodeSeries(e, len(s.SalesTrend), func(i int) (string, int64) {
					return s.SalesTrend[i].Date, int64(s.SalesTrend[i].Count)
				})
			})
			e.Field("popularProducts", func(e *jx.Encoder) {
				encodeSeries(e, len(s.TopProducts), func(i int) (string, int64) {
					return s.TopProducts[i].Name, s.TopProducts[i].Quantity
				})
			})
			e.Field("activityPeriods", func(e *jx.Encoder) {
				encodeSeries(e, len(s.ActivityByHour), func(i int) (string, int64) {
					return hourLabel(s.ActivityByHour[i]), int64(s.ActivityByHour[i].Count)
				})
			})
		})
	})
}

// encodeSeries writes {labels: [...], data: [...]} for n points.
func encodeSeries(e *jx.Encoder, n int, point func(i int) (string, int64)) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("labels", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range n {
					label, _ := point(i)
					e.Str(label)
				}
			})
		})
		e.Field("data", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range n {
					_, v := point(i)
					e.Int64(v)
				}
			})
		})
	})
}

func hourLabel(h analytics.HourlyCount) string {
	return strconv.Itoa(h.Hour) + ":00"
}
