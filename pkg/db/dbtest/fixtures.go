package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

// NewOrder returns a paid, unassigned home-delivery order for 121,000 with
// pickup and delivery points about 1.1 km apart.
func NewOrder() *models.Order {
	return &models.Order{
		OrderNumber:     fmt.Sprintf("PDA-T-%06d", seq.Add(1)),
		Kind:            enums.OrderKindStandard,
		Status:          enums.OrderStatusPaymentConfirmed,
		DeliveryMethod:  enums.DeliveryMethodHomeDelivery,
		BuyerID:         uuid.New(),
		SellerID:        uuid.New(),
		FinalAmount:     decimal.NewFromInt(121000),
		BaseAmount:      decimal.Zero,
		PickupLat:       -6.7924,
		PickupLng:       39.2083,
		PickupAddress:   "Kariakoo Market, Dar es Salaam",
		DeliveryLat:     -6.7824,
		DeliveryLng:     39.2083,
		DeliveryAddress: "Upanga, Dar es Salaam",
	}
}

// CreateOrder inserts NewOrder after applying mutators.
func CreateOrder(t testing.TB, db *gorm.DB, mutators ...func(*models.Order)) *models.Order {
	t.Helper()
	order := NewOrder()
	for _, mutate := range mutators {
		mutate(order)
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

// ReloadOrder reads the order back from the database.
func ReloadOrder(t testing.TB, db *gorm.DB, id int64) *models.Order {
	t.Helper()
	var order models.Order
	if err := db.First(&order, "id = ?", id).Error; err != nil {
		t.Fatalf("reload order %d: %v", id, err)
	}
	return &order
}
