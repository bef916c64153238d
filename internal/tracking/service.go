// Package tracking assembles the read model a buyer or operator sees when
// following an order.
package tracking

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/pdalogistics-backend/internal/lifecycle"
	"github.com/angelmondragon/pdalogistics-backend/internal/orders"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
)

type evidenceReader interface {
	ListConfirmations(ctx context.Context, orderID int64) ([]models.Confirmation, error)
	ListGPSTrail(ctx context.Context, orderID int64) ([]models.GPSTrackingLog, error)
}

// Tracking is a point-in-time view of an order and its audit trail.
type Tracking struct {
	Order         *models.Order           `json:"order"`
	StatusHistory []models.StatusHistory  `json:"status_history"`
	Confirmations []models.Confirmation   `json:"confirmations"`
	GPSTrail      []models.GPSTrackingLog `json:"gps_trail"`
	NextStatuses  []enums.OrderStatus     `json:"next_statuses"`
}

// Service exposes GetOrderTracking.
type Service interface {
	GetOrderTracking(ctx context.Context, orderID int64) (*Tracking, error)
}

type service struct {
	orders   orders.Service
	evidence evidenceReader
}

// NewService builds the tracking read model.
func NewService(ordersSvc orders.Service, evidence evidenceReader) (Service, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if evidence == nil {
		return nil, fmt.Errorf("verification reader required")
	}
	return &service{orders: ordersSvc, evidence: evidence}, nil
}

func (s *service) GetOrderTracking(ctx context.Context, orderID int64) (*Tracking, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	out := &Tracking{
		Order:        order,
		NextStatuses: lifecycle.NextStatuses(order.DeliveryMethod, order.Status),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.orders.History(gctx, orderID)
		out.StatusHistory = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.evidence.ListConfirmations(gctx, orderID)
		out.Confirmations = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.evidence.ListGPSTrail(gctx, orderID)
		out.GPSTrail = rows
		return err
	})
	if err := g.Wait(); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order tracking")
	}
	return out, nil
}
