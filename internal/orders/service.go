package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
	"github.com/angelmondragon/pdalogistics-backend/pkg/pagination"
)

// Service exposes read paths over orders. Mutations go through the
// assignment and lifecycle packages, which own the locking rules.
type Service interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListAvailableOrders(ctx context.Context, input ListAvailableInput) (*OrderList, error)
	ListAgentOrders(ctx context.Context, agentID uuid.UUID, params pagination.Params) (*OrderList, error)
	History(ctx context.Context, orderID int64) ([]models.StatusHistory, error)
}

type service struct {
	repo Repository
}

// NewService builds an orders service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, MapLookupError(err, id)
	}
	return order, nil
}

func (s *service) ListAvailableOrders(ctx context.Context, input ListAvailableInput) (*OrderList, error) {
	if input.Kind != nil && !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order kind")
	}
	if input.DeliveryMethod != nil && !input.DeliveryMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if err := validateCursor(input.Page); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListAvailable(ctx, AvailableOrderFilters{
		Kind:           input.Kind,
		DeliveryMethod: input.DeliveryMethod,
	}, input.Page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available orders")
	}
	return toList(rows, next), nil
}

func (s *service) ListAgentOrders(ctx context.Context, agentID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if agentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	if err := validateCursor(params); err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListAssignedToAgent(ctx, agentID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agent orders")
	}
	return toList(rows, next), nil
}

func (s *service) History(ctx context.Context, orderID int64) ([]models.StatusHistory, error) {
	rows, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order history")
	}
	return rows, nil
}

// MapLookupError turns a repository read failure into a typed error.
func MapLookupError(err error, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %d not found", id))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func validateCursor(params pagination.Params) error {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return nil
}

func toList(rows []models.Order, next string) *OrderList {
	out := &OrderList{Orders: make([]OrderSummary, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		out.Orders = append(out.Orders, summaryFromModel(row))
	}
	return out
}
