package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"seafood-order-service/internal/models"
	"seafood-order-service/internal/pricing"
	"seafood-order-service/internal/util"

	"github.com/shopspring/decimal"
)

// quantityPlaces is the finest quantity the stock columns hold (grams).
const quantityPlaces = 3

// OrderDraft is a validated, priced order that has not been persisted yet.
// Lines are sorted by ascending product id.
type OrderDraft struct {
	UserID          int64
	BuyerClass      models.BuyerClass
	DeliveryAddress string
	Lines           []pricing.Line
	TotalAmount     decimal.Decimal
}

// OrderAssembler validates a cart and prices it
type OrderAssembler struct {
	catalog Catalog
}

// NewOrderAssembler creates a new order assembler
func NewOrderAssembler(catalog Catalog) *OrderAssembler {
	return &OrderAssembler{catalog: catalog}
}

// Assemble validates cart lines, prices each one and sums the total. Lines for
// the same product are merged before pricing so the MOQ sees the whole quantity.
// Validation failures are returned as *ValidationError; catalog failures as
// infrastructure errors.
func (a *OrderAssembler) Assemble(
	ctx context.Context,
	userID int64,
	lines []models.CartLine,
	class models.BuyerClass,
	deliveryAddress string,
) (*OrderDraft, error) {
	ctx, span := util.StartSpan(ctx, "OrderAssembler.Assemble")
	defer span.End()

	if len(lines) == 0 {
		return nil, &ValidationError{Err: ErrEmptyCart}
	}

	address := strings.TrimSpace(deliveryAddress)
	if address == "" {
		return nil, &ValidationError{Err: ErrMissingAddress}
	}

	quantities := make(map[int64]decimal.Decimal, len(lines))
	for _, line := range lines {
		if !line.Quantity.IsPositive() || !line.Quantity.Equal(line.Quantity.Truncate(quantityPlaces)) {
			return nil, &ValidationError{Err: ErrInvalidQuantity, ProductID: line.ProductID}
		}
		if line.ProductID <= 0 {
			return nil, &ValidationError{Err: ErrProductNotFound, ProductID: line.ProductID}
		}
		quantities[line.ProductID] = quantities[line.ProductID].Add(line.Quantity)
	}

	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := a.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		util.RecordError(span, err)
		return nil, infra("load products", err)
	}

	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	draft := &OrderDraft{
		UserID:          userID,
		BuyerClass:      class,
		DeliveryAddress: address,
		Lines:           make([]pricing.Line, 0, len(ids)),
		TotalAmount:     decimal.Zero,
	}

	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			return nil, &ValidationError{Err: ErrProductNotFound, ProductID: id}
		}

		line, err := pricing.PriceLine(product, quantities[id], class)
		if errors.Is(err, pricing.ErrNonPositiveQuantity) {
			return nil, &ValidationError{Err: ErrInvalidQuantity, ProductID: id}
		}
		if err != nil {
			return nil, err
		}

		draft.Lines = append(draft.Lines, line)
		draft.TotalAmount = draft.TotalAmount.Add(line.LineTotal)
	}

	return draft, nil
}
