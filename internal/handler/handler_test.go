package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopdesk/internal/domain/analytics"
	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/order"
	"github.com/xenking/shopdesk/internal/domain/pricing"
	"github.com/xenking/shopdesk/internal/domain/product"
)

// --- Stub services ---

type stubProducts struct {
	list    []product.Product
	created *product.Product
	err     error

	gotName  string
	gotPrice decimal.Decimal
}

func (s *stubProducts) Create(_ context.Context, name string, price decimal.Decimal) (*product.Product, error) {
	s.gotName, s.gotPrice = name, price
	return s.created, s.err
}

func (s *stubProducts) List(context.Context) ([]product.Product, error) { return s.list, s.err }

type stubDiscounts struct {
	list       []discount.Discount
	created    *discount.Discount
	resolution discount.Resolution
	err        error

	gotReq discount.CreateRequest
}

func (s *stubDiscounts) Create(_ context.Context, req discount.CreateRequest) (*discount.Discount, error) {
	s.gotReq = req
	return s.created, s.err
}

func (s *stubDiscounts) List(context.Context) ([]discount.Discount, error) { return s.list, s.err }

func (s *stubDiscounts) Resolve(_ context.Context, code string) (discount.Resolution, error) {
	res := s.resolution
	res.Code = code
	return res, s.err
}

type stubOrders struct {
	quote  *order.QuoteResult
	placed *order.PlaceOrderResult
	order  *order.Order
	list   []order.Order
	err    error

	gotLines  []pricing.Line
	gotCode   string
	gotReq    order.PlaceOrderRequest
	gotID     string
	gotFilter order.Filter
}

func (s *stubOrders) Quote(_ context.Context, lines []pricing.Line, code string) (*order.QuoteResult, error) {
	s.gotLines, s.gotCode = lines, code
	return s.quote, s.err
}

func (s *stubOrders) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error) {
	s.gotReq = req
	return s.placed, s.err
}

func (s *stubOrders) Get(_ context.Context, id string) (*order.Order, error) {
	s.gotID = id
	return s.order, s.err
}

func (s *stubOrders) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	s.gotFilter = f
	return s.list, s.err
}

type stubReports struct {
	dashboard *analytics.Dashboard
	sales     *analytics.Sales
	err       error

	gotRange string
}

func (s *stubReports) Dashboard(context.Context) (*analytics.Dashboard, error) {
	return s.dashboard, s.err
}

func (s *stubReports) Sales(_ context.Context, timeRange string) (*analytics.Sales, error) {
	s.gotRange = timeRange
	return s.sales, s.err
}

// --- Helpers ---

type fixture struct {
	products  *stubProducts
	discounts *stubDiscounts
	orders    *stubOrders
	reports   *stubReports
	router    chi.Router
}

func newFixture() *fixture {
	f := &fixture{
		products:  &stubProducts{},
		discounts: &stubDiscounts{},
		orders:    &stubOrders{},
		reports:   &stubReports{},
	}
	h := NewHandler(Config{Location: time.UTC}, f.products, f.discounts, f.orders, f.reports)
	f.router = chi.NewRouter()
	h.Register(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, target, rd))
	resp := rec.Result()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp, out
}

func (f *fixture) doArray(t *testing.T, target string) []map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var created = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

func coffee() *product.Product {
	return &product.Product{ID: "p1", Name: "Coffee", Price: decimal.RequireFromString("3.5"), CreatedAt: created}
}

// --- Products ---

func TestListProducts(t *testing.T) {
	f := newFixture()
	f.products.list = []product.Product{*coffee()}

	got := f.doArray(t, "/api/products")
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0]["id"])
	assert.Equal(t, 3.5, got[0]["price"])
	assert.Equal(t, "2025-04-01T10:00:00Z", got[0]["createdAt"])
}

func TestCreateProduct(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "number price", body: `{"name":"Coffee","price":3.50}`, wantStatus: http.StatusCreated},
		{name: "string price", body: `{"name":"Coffee","price":"3.50","extra":[1,2]}`, wantStatus: http.StatusCreated},
		{name: "malformed json", body: `{"name":`, wantStatus: http.StatusBadRequest},
		{name: "price not a number", body: `{"name":"Coffee","price":true}`, wantStatus: http.StatusBadRequest},
		{name: "missing price", body: `{"name":"Coffee"}`, wantStatus: http.StatusUnprocessableEntity},
		{
			name:       "domain validation",
			body:       `{"name":"","price":1}`,
			err:        &product.ValidationError{Field: "name", Reason: "must not be empty"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "storage failure",
			body:       `{"name":"Coffee","price":1}`,
			err:        errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.products.created = coffee()
			f.products.err = tt.err

			resp, body := f.do(t, http.MethodPost, "/api/products", tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode, body)
			if tt.wantStatus == http.StatusCreated {
				assert.Equal(t, "Coffee", f.products.gotName)
				assert.True(t, decimal.RequireFromString("3.5").Equal(f.products.gotPrice))
				assert.Equal(t, "p1", body["id"])
				return
			}
			assert.Equal(t, float64(tt.wantStatus), body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestInternalErrorsAreNotExposed(t *testing.T) {
	f := newFixture()
	f.products.err = errors.New("pq: password authentication failed")

	resp, body := f.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal Server Error", body["message"])
}

// --- Discounts ---

func TestCreateDiscount(t *testing.T) {
	f := newFixture()
	f.discounts.created = &discount.Discount{
		ID: "d1", Name: "Summer", Kind: discount.KindPercentage, Value: decimal.NewFromInt(10),
		StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
		CreatedAt: created,
	}

	resp, body := f.do(t, http.MethodPost, "/api/discounts", `{
		"name": "Summer", "type": "PERCENTAGE", "value": 10, "code": null,
		"startDate": "2025-06-01", "endDate": "2025-08-31T23:59:59+02:00"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	req := f.discounts.gotReq
	assert.Equal(t, "Summer", req.Name)
	assert.Equal(t, "PERCENTAGE", req.Kind)
	assert.Empty(t, req.Code)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), req.StartDate)
	assert.True(t, req.EndDate.Equal(time.Date(2025, 8, 31, 21, 59, 59, 0, time.UTC)))

	assert.Equal(t, "percentage", body["type"])
	assert.Nil(t, body["code"])
}

func TestCreateDiscount_BadDate(t *testing.T) {
	f := newFixture()
	resp, _ := f.do(t, http.MethodPost, "/api/discounts",
		`{"name":"x","type":"fixed","value":1,"startDate":"yesterday","endDate":"2025-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApplyDiscount(t *testing.T) {
	active := &discount.Discount{Kind: discount.KindFixed, Value: decimal.RequireFromString("5")}

	tests := []struct {
		name       string
		target     string
		resolution discount.Resolution
		err        error
		wantStatus int
	}{
		{name: "missing code", target: "/api/discounts/apply", wantStatus: http.StatusBadRequest},
		{name: "blank code", target: "/api/discounts/apply?code=%20", wantStatus: http.StatusBadRequest},
		{
			name:       "invalid",
			target:     "/api/discounts/apply?code=NOPE",
			resolution: discount.Resolution{Outcome: discount.OutcomeInvalid},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "applied",
			target:     "/api/discounts/apply?code=FIVE",
			resolution: discount.Resolution{Outcome: discount.OutcomeApplied, Discount: active},
			wantStatus: http.StatusOK,
		},
		{
			name:       "lookup failure",
			target:     "/api/discounts/apply?code=FIVE",
			err:        errors.New("timeout"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.discounts.resolution = tt.resolution
			f.discounts.err = tt.err

			resp, body := f.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, tt.wantStatus, resp.StatusCode, body)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "fixed", body["type"])
				assert.Equal(t, 5.0, body["value"])
			}
		})
	}
}

// --- Orders ---

func TestQuoteOrder(t *testing.T) {
	f := newFixture()
	f.orders.quote = &order.QuoteResult{
		Totals: pricing.Totals{
			Subtotal:       decimal.RequireFromString("9.99"),
			DiscountAmount: decimal.RequireFromString("3.2967"),
			Total:          decimal.RequireFromString("6.6933"),
		},
		Discount: discount.Resolution{Code: "X", Outcome: discount.OutcomeInvalid},
	}

	resp, body := f.do(t, http.MethodPost, "/api/orders/quote",
		`{"items":[{"productId":"p1","quantity":3},{"productId":7,"quantity":1}],"discountCode":"X"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	assert.Equal(t, []pricing.Line{{ProductID: "p1", Quantity: 3}, {ProductID: "7", Quantity: 1}}, f.orders.gotLines)
	assert.Equal(t, "X", f.orders.gotCode)
	assert.Equal(t, 9.99, body["subtotal"])
	assert.Equal(t, 3.3, body["discountAmount"])
	assert.Equal(t, 6.69, body["total"])
	assert.Equal(t, map[string]any{"status": "invalid", "code": "X"}, body["discount"])
}

func TestQuoteOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "items not an array", body: `{"items":{}}`, wantStatus: http.StatusBadRequest},
		{name: "quantity not an int", body: `{"items":[{"productId":"p1","quantity":1.5}]}`, wantStatus: http.StatusBadRequest},
		{name: "no lines", body: `{"items":[]}`, err: pricing.ErrNoLines, wantStatus: http.StatusUnprocessableEntity},
		{
			name:       "bad quantity",
			body:       `{"items":[{"productId":"p1","quantity":0}]}`,
			err:        &pricing.ValidationError{ProductID: "p1"},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.err = tt.err
			resp, body := f.do(t, http.MethodPost, "/api/orders/quote", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, body)
		})
	}
}

func sampleOrder() *order.Order {
	p := coffee()
	return &order.Order{
		ID:              "o1",
		CustomerName:    "Ada",
		DeliveryAddress: "1 Analytical St",
		CreatedAt:       created,
		Status:          order.StatusPending,
		Items: []order.Item{
			{ProductID: "p1", Quantity: 2, Product: p},
			{ProductID: "gone", Quantity: 1},
		},
		Discount: &discount.Discount{ID: "d1", Name: "Five off", Kind: discount.KindFixed, Value: decimal.NewFromInt(5)},
	}
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture()
	o := sampleOrder()
	f.orders.placed = &order.PlaceOrderResult{
		Order:    o,
		Totals:   o.Totals(),
		Discount: discount.Resolution{Code: "FIVE", Outcome: discount.OutcomeApplied, Discount: o.Discount},
	}

	resp, body := f.do(t, http.MethodPost, "/api/orders", `{
		"customerName": "Ada",
		"deliveryAddress": "1 Analytical St",
		"orderItems": [{"productId": "p1", "quantity": 2}],
		"discountCode": "FIVE"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	assert.Equal(t, order.PlaceOrderRequest{
		CustomerName:    "Ada",
		DeliveryAddress: "1 Analytical St",
		Items:           []pricing.Line{{ProductID: "p1", Quantity: 2}},
		DiscountCode:    "FIVE",
	}, f.orders.gotReq)

	assert.Equal(t, "o1", body["id"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, 7.0, body["subtotal"])
	assert.Equal(t, 5.0, body["discountAmount"])
	assert.Equal(t, 2.0, body["total"])

	items := body["orderItems"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Coffee", items[0].(map[string]any)["product"].(map[string]any)["name"])
	assert.Nil(t, items[1].(map[string]any)["product"])

	assert.Equal(t, "applied", body["discountResult"].(map[string]any)["status"])
	assert.Equal(t, "Five off", body["discount"].(map[string]any)["name"])
}

func TestPlaceOrder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "empty name", err: &order.ValidationError{Field: "customerName", Reason: "must not be empty"}},
		{name: "unknown product", err: &order.ProductNotFoundError{ProductID: "p9"}},
		{name: "wrapped line error", err: errors.Wrap(&pricing.ValidationError{ProductID: "p1"}, "place")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.err = tt.err
			resp, body := f.do(t, http.MethodPost, "/api/orders", `{"orderItems":[]}`)
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Equal(t, tt.err.Error(), body["message"])
		})
	}
}

func TestGetOrder(t *testing.T) {
	f := newFixture()
	f.orders.order = sampleOrder()

	resp, body := f.do(t, http.MethodGet, "/api/orders/o1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "o1", f.orders.gotID)
	assert.Equal(t, 2.0, body["total"], "totals are recomputed from the order")

	f.orders.err = order.ErrNotFound
	resp, body = f.do(t, http.MethodGet, "/api/orders/missing", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, float64(http.StatusNotFound), body["code"])
}

func TestListOrders_Filter(t *testing.T) {
	f := newFixture()
	f.orders.list = []order.Order{*sampleOrder()}

	got := f.doArray(t, "/api/orders?status=Shipped&q=%20ada%20&from=2025-04-01&to=2025-04-30")
	require.Len(t, got, 1)
	assert.Equal(t, order.Filter{
		Status: order.StatusShipped,
		Query:  "ada",
		From:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2025, 4, 30, 23, 59, 59, 999999999, time.UTC),
	}, f.orders.gotFilter)

	_ = f.doArray(t, "/api/orders?status=all")
	assert.Empty(t, f.orders.gotFilter.Status)

	resp, _ := f.do(t, http.MethodGet, "/api/orders?status=lost", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/api/orders?from=soon", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListOrders_ToCoversWholeDay(t *testing.T) {
	f := newFixture()
	placed := &order.Order{ID: "o1", CreatedAt: time.Date(2024, 6, 30, 10, 0, 0, 0, time.UTC)}
	nextDay := &order.Order{ID: "o2", CreatedAt: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)}

	_ = f.doArray(t, "/api/orders?to=2024-06-30")
	assert.True(t, f.orders.gotFilter.Match(placed), "order on the end date")
	assert.False(t, f.orders.gotFilter.Match(nextDay), "order on the following day")

	// Timestamps stay exact.
	_ = f.doArray(t, "/api/orders?to=2024-06-30T09:00:00Z")
	assert.Equal(t, time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC), f.orders.gotFilter.To)
	assert.False(t, f.orders.gotFilter.Match(placed))

	resp, _ := f.do(t, http.MethodGet, "/api/orders?to=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- Analytics ---

func TestDashboard(t *testing.T) {
	f := newFixture()
	f.reports.dashboard = &analytics.Dashboard{
		TotalProducts: 3,
		TotalOrders:   2,
		TotalRevenue:  decimal.RequireFromString("17.5"),
		TopProducts:   []analytics.ProductSales{{ProductID: "p1", Name: "Coffee", Quantity: 4}},
	}

	resp, body := f.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3.0, body["totalProducts"])
	assert.Equal(t, 17.5, body["totalRevenue"])
	assert.Equal(t, []any{map[string]any{"productId": "p1", "name": "Coffee", "sales": 4.0}}, body["popularProducts"])

	f.reports.err = errors.Wrap(analytics.ErrUnavailable, "list orders")
	resp, body = f.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "aggregation unavailable", body["message"])
}

func TestAnalytics(t *testing.T) {
	f := newFixture()
	f.reports.sales = &analytics.Sales{
		TimeRange:      analytics.RangeMonth,
		Start:          time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		SalesTrend:     []analytics.DailyCount{{Date: "2025-04-03", Count: 2}},
		TopProducts:    []analytics.ProductSales{{ProductID: "p1", Name: "Coffee", Quantity: 4}},
		ActivityByHour: analytics.ActivityByHour(nil, time.Time{}, time.UTC),
	}

	resp, body := f.do(t, http.MethodGet, "/api/analytics?timeRange=month", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "month", f.reports.gotRange)
	assert.Equal(t, "month", body["timeRange"])
	assert.Equal(t, map[string]any{"labels": []any{"2025-04-03"}, "data": []any{2.0}}, body["salesTrend"])
	assert.Equal(t, map[string]any{"labels": []any{"Coffee"}, "data": []any{4.0}}, body["popularProducts"])

	activity := body["activityPeriods"].(map[string]any)
	assert.Len(t, activity["labels"], 24)
	assert.Equal(t, "13:00", activity["labels"].([]any)[13])

	f.reports.err = errors.Wrap(analytics.ErrInvalidTimeRange, "decade")
	resp, _ = f.do(t, http.MethodGet, "/api/analytics?timeRange=decade", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
