package pricing

import (
	"testing"

	"seafood-order-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func TestRetailDiscount(t *testing.T) {
	p := models.Product{ID: 1, Price: d("10.00"), DiscountPercent: nd("10")}

	for _, q := range []string{"0.5", "1", "2", "37.25"} {
		price, err := ResolveUnitPrice(p, d(q), models.BuyerRetail)
		require.NoError(t, err)
		assert.True(t, d("9.00").Equal(price), "qty %s got %s", q, price)
	}
}

func TestRetailNoDiscount(t *testing.T) {
	p := models.Product{ID: 1, Price: d("20.00")}
	price, err := ResolveUnitPrice(p, d("3"), models.BuyerRetail)
	require.NoError(t, err)
	assert.True(t, d("20.00").Equal(price))

	p.DiscountPercent = nd("0")
	price, err = ResolveUnitPrice(p, d("3"), models.BuyerRetail)
	require.NoError(t, err)
	assert.True(t, d("20.00").Equal(price))
}

func TestWholesaleExplicitPrice(t *testing.T) {
	p := models.Product{ID: 2, Price: d("20.00"), WholesalePrice: nd("15.00"), WholesaleMOQ: nd("10")}

	for _, q := range []string{"10", "10.5", "250"} {
		price, err := ResolveUnitPrice(p, d(q), models.BuyerWholesale)
		require.NoError(t, err)
		assert.True(t, d("15.00").Equal(price), "qty %s got %s", q, price)
	}
}

func TestWholesaleFallbackFactor(t *testing.T) {
	p := models.Product{ID: 3, Price: d("12.50"), WholesaleMOQ: nd("5")}
	price, err := ResolveUnitPrice(p, d("5"), models.BuyerWholesale)
	require.NoError(t, err)
	assert.True(t, d("10.00").Equal(price), "got %s", price)
}

func TestWholesaleUnsetMOQAlwaysEligible(t *testing.T) {
	p := models.Product{ID: 4, Price: d("10.00"), DiscountPercent: nd("50")}
	price, err := ResolveUnitPrice(p, d("0.1"), models.BuyerWholesale)
	require.NoError(t, err)
	assert.True(t, d("8.00").Equal(price), "got %s", price)
}

func TestWholesaleBelowMOQFallsBackToRetail(t *testing.T) {
	p := models.Product{ID: 5, Price: d("20.00"), WholesalePrice: nd("15.00"), WholesaleMOQ: nd("10")}

	line, err := PriceLine(p, d("8"), models.BuyerWholesale)
	require.NoError(t, err)
	assert.False(t, line.Wholesale)
	assert.True(t, d("20.00").Equal(line.UnitPrice))
	assert.True(t, d("160.00").Equal(line.LineTotal))
}

func TestWholesaleNeverStacksRetailDiscount(t *testing.T) {
	p := models.Product{ID: 6, Price: d("20.00"), WholesalePrice: nd("15.00"), WholesaleMOQ: nd("1"), DiscountPercent: nd("50")}
	price, err := ResolveUnitPrice(p, d("2"), models.BuyerWholesale)
	require.NoError(t, err)
	assert.True(t, d("15.00").Equal(price))

	price, err = ResolveUnitPrice(p, d("2"), models.BuyerRetail)
	require.NoError(t, err)
	assert.True(t, d("10.00").Equal(price))
}

func TestDiscountClampedAtHundred(t *testing.T) {
	p := models.Product{ID: 7, Price: d("9.99"), DiscountPercent: nd("140")}
	price, err := ResolveUnitPrice(p, d("1"), models.BuyerRetail)
	require.NoError(t, err)
	assert.True(t, price.IsZero())
}

func TestPriceLineScenario(t *testing.T) {
	p := models.Product{ID: 1, Price: d("10.00"), DiscountPercent: nd("10")}
	line, err := PriceLine(p, d("2"), models.BuyerRetail)
	require.NoError(t, err)
	assert.Equal(t, int64(1), line.ProductID)
	assert.True(t, d("18.00").Equal(line.LineTotal))
}

func TestLineTotalRounding(t *testing.T) {
	p := models.Product{ID: 8, Price: d("7.99")}
	line, err := PriceLine(p, d("1.337"), models.BuyerRetail)
	require.NoError(t, err)
	assert.Equal(t, "10.68", line.LineTotal.StringFixed(2))
}

func TestInvalidInputs(t *testing.T) {
	p := models.Product{ID: 9, Price: d("5")}

	_, err := ResolveUnitPrice(p, d("0"), models.BuyerRetail)
	assert.ErrorIs(t, err, ErrNonPositiveQuantity)

	_, err = ResolveUnitPrice(p, d("-1"), models.BuyerWholesale)
	assert.ErrorIs(t, err, ErrNonPositiveQuantity)

	_, err = ResolveUnitPrice(p, d("1"), models.BuyerClass("vip"))
	assert.ErrorIs(t, err, ErrUnknownBuyerClass)
}

func TestResolveIsDeterministic(t *testing.T) {
	p := models.Product{ID: 10, Price: d("33.33"), DiscountPercent: nd("12.5"), WholesaleMOQ: nd("3")}
	for _, class := range []models.BuyerClass{models.BuyerRetail, models.BuyerWholesale} {
		a, err := ResolveUnitPrice(p, d("4"), class)
		require.NoError(t, err)
		b, err := ResolveUnitPrice(p, d("4"), class)
		require.NoError(t, err)
		assert.True(t, a.Equal(b))
	}
}
