// Package pricing resolves the unit price a buyer pays for a product line.
// Everything here is a pure function of its inputs.
package pricing

import (
	"errors"
	"fmt"

	"seafood-order-service/internal/models"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the scale prices and totals are rounded to.
const MoneyPlaces = 2

var (
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrUnknownBuyerClass   = errors.New("unknown buyer class")
)

var (
	hundred = decimal.NewFromInt(100)

	// DefaultWholesaleFactor applies when a wholesale line qualifies but the
	// product carries no explicit wholesale price.
	DefaultWholesaleFactor = decimal.RequireFromString("0.80")
)

// Line is a priced cart line
type Line struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Wholesale bool
}

// ResolveUnitPrice returns the unit price for quantity of product under class.
//
// A wholesale buyer whose quantity meets the product MOQ (unset MOQ means 0)
// pays the wholesale price, or base price x 0.80 when none is set. Every other
// line pays the base price less discount_percent. The two paths never combine.
func ResolveUnitPrice(p models.Product, quantity decimal.Decimal, class models.BuyerClass) (decimal.Decimal, error) {
	price, _, err := resolve(p, quantity, class)
	return price, err
}

// PriceLine resolves the unit price and line total for one cart line.
func PriceLine(p models.Product, quantity decimal.Decimal, class models.BuyerClass) (Line, error) {
	price, wholesale, err := resolve(p, quantity, class)
	if err != nil {
		return Line{}, err
	}
	return Line{
		ProductID: p.ID,
		Quantity:  quantity,
		UnitPrice: price,
		LineTotal: price.Mul(quantity).Round(MoneyPlaces),
		Wholesale: wholesale,
	}, nil
}

func resolve(p models.Product, quantity decimal.Decimal, class models.BuyerClass) (decimal.Decimal, bool, error) {
	if !quantity.IsPositive() {
		return decimal.Zero, false, ErrNonPositiveQuantity
	}

	switch class {
	case models.BuyerWholesale:
		if wholesaleEligible(p, quantity) {
			return wholesalePrice(p), true, nil
		}
	case models.BuyerRetail:
	default:
		return decimal.Zero, false, fmt.Errorf("%w: %q", ErrUnknownBuyerClass, class)
	}

	return retailPrice(p), false, nil
}

func wholesaleEligible(p models.Product, quantity decimal.Decimal) bool {
	moq := decimal.Zero
	if p.WholesaleMOQ.Valid {
		moq = p.WholesaleMOQ.Decimal
	}
	return quantity.GreaterThanOrEqual(moq)
}

func wholesalePrice(p models.Product) decimal.Decimal {
	if p.WholesalePrice.Valid {
		return p.WholesalePrice.Decimal.Round(MoneyPlaces)
	}
	return p.Price.Mul(DefaultWholesaleFactor).Round(MoneyPlaces)
}

func retailPrice(p models.Product) decimal.Decimal {
	if !p.DiscountPercent.Valid || !p.DiscountPercent.Decimal.IsPositive() {
		return p.Price.Round(MoneyPlaces)
	}
	pct := decimal.Min(p.DiscountPercent.Decimal, hundred)
	factor := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	return p.Price.Mul(factor).Round(MoneyPlaces)
}
