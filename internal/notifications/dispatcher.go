package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/pdalogistics-backend/pkg/types"
)

// Notice is one message addressed to one user. Key, when set, makes delivery
// idempotent: the same key always maps to the same stored row.
type Notice struct {
	Key     string
	UserID  uuid.UUID
	Role    enums.PartyRole
	OrderID *int64
	Type    enums.NotificationType
	Title   string
	Message string
	Data    map[string]any
}

// Notifier delivers a notice. Email, SMS or push transports plug in here.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

// StoreNotifier persists notices as in-app notifications.
type StoreNotifier struct {
	repo Repository
}

// NewStoreNotifier builds the in-app notifier.
func NewStoreNotifier(repo Repository) (*StoreNotifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &StoreNotifier{repo: repo}, nil
}

func (n *StoreNotifier) Notify(ctx context.Context, notice Notice) error {
	id := uuid.New()
	if notice.Key != "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(notice.Key))
	}
	row := &models.Notification{
		ID:      id,
		UserID:  notice.UserID,
		Role:    notice.Role,
		OrderID: notice.OrderID,
		Type:    notice.Type,
		Title:   notice.Title,
		Message: notice.Message,
		Data:    types.JSONMap(notice.Data),
	}
	if _, err := n.repo.Create(ctx, row); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

type recipient struct {
	UserID uuid.UUID
	Role   enums.PartyRole
}

// DispatcherParams wires the dispatcher.
type DispatcherParams struct {
	Notifier     Notifier
	AdminUserIDs []uuid.UUID
	Logger       *logger.Logger
}

// Dispatcher turns domain events into per-recipient notices.
type Dispatcher struct {
	notifier Notifier
	admins   []uuid.UUID
	logg     *logger.Logger
}

// NewDispatcher validates dependencies.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		notifier: params.Notifier,
		admins:   params.AdminUserIDs,
		logg:     params.Logger,
	}, nil
}

// OrderStatusChanged notifies every party concerned by the new status except
// the actor who caused it.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, eventID uuid.UUID, event payloads.OrderStatusChangedEvent) error {
	tpl, ok := statusTemplates[event.ToStatus]
	if !ok {
		d.logg.Warn(ctx, "no notification template for status")
		return nil
	}

	parties := map[enums.PartyRole][]uuid.UUID{
		buyer:  {event.BuyerID},
		seller: {event.SellerID},
		agent:  append(idList(event.AgentID), idList(event.PickupDeliveryAgentID)...),
		psm:    idList(event.PSMID),
		admin:  d.admins,
	}
	data := map[string]any{
		"order_number": event.OrderNumber,
		"from_status":  string(event.FromStatus),
		"to_status":    string(event.ToStatus),
	}
	if event.Notes != "" {
		data["notes"] = event.Notes
	}
	return d.fanOut(ctx, eventID, event.OrderID, tpl, event.OrderNumber, resolve(tpl.Recipients, parties, event.ActorID), data)
}

// OrderAssigned tells the buyer, seller and winning agent who took the order.
func (d *Dispatcher) OrderAssigned(ctx context.Context, eventID uuid.UUID, event payloads.OrderAssignedEvent) error {
	tpl := statusTemplates[enums.OrderStatusAssignedToAgent]
	parties := map[enums.PartyRole][]uuid.UUID{
		buyer:  {event.BuyerID},
		seller: {event.SellerID},
		agent:  {event.AgentID},
	}
	data := map[string]any{
		"order_number": event.OrderNumber,
		"agent_id":     event.AgentID.String(),
	}
	return d.fanOut(ctx, eventID, event.OrderID, tpl, event.OrderNumber, resolve(tpl.Recipients, parties, uuid.Nil), data)
}

// CommissionApproved sends each party one notice with the total approved for
// the order.
func (d *Dispatcher) CommissionApproved(ctx context.Context, eventID uuid.UUID, event payloads.CommissionApprovedEvent) error {
	totals := map[uuid.UUID]decimal.Decimal{}
	roles := map[uuid.UUID]enums.PartyRole{}
	order := []uuid.UUID{}
	for _, line := range event.Lines {
		amount, err := decimal.NewFromString(line.Amount)
		if err != nil {
			return fmt.Errorf("commission %d amount: %w", line.CommissionID, err)
		}
		if _, seen := totals[line.PartyID]; !seen {
			order = append(order, line.PartyID)
			roles[line.PartyID] = line.PartyRole
		}
		totals[line.PartyID] = totals[line.PartyID].Add(amount)
	}

	orderID := event.OrderID
	var errs error
	for _, partyID := range order {
		amount := totals[partyID].StringFixed(2)
		notice := Notice{
			Key:     noticeKey(eventID, partyID),
			UserID:  partyID,
			Role:    roles[partyID],
			OrderID: &orderID,
			Type:    enums.NotificationTypeCommissionApproved,
			Title:   "Commission approved",
			Message: fmt.Sprintf("Your commission of %s for order %d was approved.", amount, event.OrderID),
			Data:    map[string]any{"amount": amount},
		}
		errs = multierr.Append(errs, d.notifier.Notify(ctx, notice))
	}
	return errs
}

func (d *Dispatcher) fanOut(ctx context.Context, eventID uuid.UUID, orderID int64, tpl template, orderNumber string, recipients []recipient, data map[string]any) error {
	var errs error
	for _, r := range recipients {
		id := orderID
		notice := Notice{
			Key:     noticeKey(eventID, r.UserID),
			UserID:  r.UserID,
			Role:    r.Role,
			OrderID: &id,
			Type:    tpl.Type,
			Title:   tpl.Title,
			Message: tpl.render(orderNumber),
			Data:    data,
		}
		errs = multierr.Append(errs, d.notifier.Notify(ctx, notice))
	}
	if errs == nil {
		d.logg.Debug(d.logg.WithField(ctx, "recipients", len(recipients)), "notifications dispatched")
	}
	return errs
}

// resolve expands roles into user ids, dropping unknown parties, the actor
// and duplicates.
func resolve(roles []enums.PartyRole, parties map[enums.PartyRole][]uuid.UUID, actor uuid.UUID) []recipient {
	seen := map[uuid.UUID]struct{}{}
	out := []recipient{}
	for _, role := range roles {
		for _, id := range parties[role] {
			if id == uuid.Nil || id == actor {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, recipient{UserID: id, Role: role})
		}
	}
	return out
}

func idList(id *uuid.UUID) []uuid.UUID {
	if id == nil {
		return nil
	}
	return []uuid.UUID{*id}
}

func noticeKey(eventID, userID uuid.UUID) string {
	return eventID.String() + ":" + userID.String()
}

// ParseAdminIDs reads the configured admin recipients, skipping blanks.
func ParseAdminIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("admin user id %q: %w", value, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
