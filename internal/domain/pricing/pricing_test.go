package pricing

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopdesk/internal/domain/discount"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func percentage(v string) *discount.Discount {
	return &discount.Discount{Kind: discount.KindPercentage, Value: dec(v)}
}

func fixed(v string) *discount.Discount {
	return &discount.Discount{Kind: discount.KindFixed, Value: dec(v)}
}

func assertDecEqual(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func TestSubtotal(t *testing.T) {
	prices := PriceMap{"a": dec("10"), "b": dec("5"), "free": decimal.Zero}

	tests := []struct {
		name  string
		lines []Line
		want  string
	}{
		{name: "empty", lines: nil, want: "0"},
		{name: "single line", lines: []Line{{"a", 3}}, want: "30"},
		{name: "two lines", lines: []Line{{"a", 2}, {"b", 1}}, want: "25"},
		{name: "unknown product counts as zero", lines: []Line{{"a", 1}, {"ghost", 4}}, want: "10"},
		{name: "zero price", lines: []Line{{"free", 7}}, want: "0"},
		{name: "zero quantity", lines: []Line{{"a", 0}}, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecEqual(t, dec(tt.want), Subtotal(tt.lines, prices))
		})
	}
}

func TestSubtotal_KeepsFullPrecision(t *testing.T) {
	prices := PriceMap{"a": dec("0.333")}
	assertDecEqual(t, dec("0.999"), Subtotal([]Line{{"a", 3}}, prices))
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		discount *discount.Discount
		want     string
	}{
		{name: "no discount", subtotal: "25", want: "25"},
		{name: "percentage", subtotal: "25", discount: percentage("50"), want: "12.5"},
		{name: "percentage zero", subtotal: "25", discount: percentage("0"), want: "25"},
		{name: "percentage hundred", subtotal: "25", discount: percentage("100"), want: "0"},
		{name: "fixed below subtotal", subtotal: "25", discount: fixed("5"), want: "20"},
		{name: "fixed equal to subtotal", subtotal: "25", discount: fixed("25"), want: "0"},
		{name: "fixed above subtotal floors at zero", subtotal: "25", discount: fixed("30"), want: "0"},
		{name: "unknown kind is ignored", subtotal: "25", discount: &discount.Discount{Kind: "bogus", Value: dec("5")}, want: "25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecEqual(t, dec(tt.want), ApplyDiscount(dec(tt.subtotal), tt.discount))
		})
	}
}

// Percentages above 100 are not clamped: the total goes negative. This pins
// the current behaviour so any change to it is deliberate.
func TestApplyDiscount_PercentageAboveHundredGoesNegative(t *testing.T) {
	got := ApplyDiscount(dec("40"), percentage("150"))
	assertDecEqual(t, dec("-20"), got)
	assert.True(t, got.IsNegative())

	totals := Compute([]Line{{"a", 4}}, PriceMap{"a": dec("10")}, percentage("150"))
	assertDecEqual(t, dec("-20"), totals.Total)
	assertDecEqual(t, dec("60"), totals.DiscountAmount)
}

func TestCompute_Scenario(t *testing.T) {
	lines := []Line{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 1}}
	prices := PriceMap{"A": dec("10"), "B": dec("5")}

	plain := Compute(lines, prices, nil)
	assertDecEqual(t, dec("25"), plain.Subtotal)
	assertDecEqual(t, decimal.Zero, plain.DiscountAmount)
	assertDecEqual(t, dec("25"), plain.Total)

	floored := Compute(lines, prices, fixed("30"))
	assertDecEqual(t, dec("25"), floored.Subtotal)
	assertDecEqual(t, dec("25"), floored.DiscountAmount)
	assertDecEqual(t, decimal.Zero, floored.Total)

	half := Compute(lines, prices, percentage("50"))
	assertDecEqual(t, dec("12.5"), half.DiscountAmount)
	assertDecEqual(t, dec("12.5"), half.Total)
}

func TestTotals_Round(t *testing.T) {
	totals := Compute([]Line{{"a", 1}}, PriceMap{"a": dec("9.99")}, percentage("33"))
	r := totals.Round()
	assertDecEqual(t, dec("9.99"), r.Subtotal)
	assertDecEqual(t, dec("3.30"), r.DiscountAmount)
	assertDecEqual(t, dec("6.69"), r.Total)
}

func TestValidateLines(t *testing.T) {
	require.ErrorIs(t, ValidateLines(nil), ErrNoLines)
	require.NoError(t, ValidateLines([]Line{{"a", 1}, {"b", 5}}))

	require.NoError(t, ValidateLines([]Line{{"a", MaxQuantity}}))

	for _, q := range []int{0, -1, MaxQuantity + 1} {
		err := ValidateLines([]Line{{"a", 1}, {"b", q}})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "b", vErr.ProductID)
		assert.Equal(t, q, vErr.Quantity)
	}
}

func randomCart(r *rand.Rand) ([]Line, PriceMap) {
	n := r.IntN(8) + 1
	lines := make([]Line, n)
	prices := make(PriceMap, n)
	for i := range n {
		id := "p" + strconv.Itoa(i)
		lines[i] = Line{ProductID: id, Quantity: r.IntN(20)}
		prices[id] = decimal.New(int64(r.IntN(100_000)), -2)
	}
	return lines, prices
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for i := range 500 {
		lines, prices := randomCart(r)

		want := decimal.Zero
		for _, l := range lines {
			want = want.Add(prices[l.ProductID].Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		subtotal := Subtotal(lines, prices)
		require.True(t, want.Equal(subtotal), "case %d: sum of quantity x price", i)

		shuffled := append([]Line(nil), lines...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		require.True(t, subtotal.Equal(Subtotal(shuffled, prices)), "case %d: reorder invariance", i)

		require.True(t, subtotal.Equal(ApplyDiscount(subtotal, nil)), "case %d: no-discount identity", i)

		v := decimal.New(int64(r.IntN(200_000)), -2)
		fixedTotal := ApplyDiscount(subtotal, fixed(v.String()))
		require.True(t, decimal.Max(subtotal.Sub(v), decimal.Zero).Equal(fixedTotal), "case %d: fixed floor", i)

		p := decimal.NewFromInt(int64(r.IntN(101)))
		pctTotal := ApplyDiscount(subtotal, percentage(p.String()))
		require.True(t, subtotal.Mul(decimal.NewFromInt(1).Sub(p.Div(hundred))).Equal(pctTotal), "case %d: percentage formula", i)
		require.False(t, pctTotal.IsNegative(), "case %d: percentage within [0,100] stays non-negative", i)
		require.True(t, pctTotal.LessThanOrEqual(subtotal), "case %d: percentage never raises the total", i)
	}
}
