package commission

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
)

const moneyPlaces = 2

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Input is the order context the split depends on. Optional parties are nil
// when they did not take part.
type Input struct {
	FinalAmount           decimal.Decimal
	DeliveryMethod        enums.DeliveryMethod
	FastDeliveryAgentID   *uuid.UUID
	PSMID                 *uuid.UUID
	PSMRole               enums.PSMRole
	PickupDeliveryAgentID *uuid.UUID
	ReferrerID            *uuid.UUID
}

// Line is one share of the margin. Platform shares (system maintenance and
// platform net) carry no PartyID.
type Line struct {
	Type       enums.CommissionType
	PartyID    uuid.UUID
	PartyRole  enums.PartyRole
	Rate       decimal.Decimal
	BaseAmount decimal.Decimal
	Amount     decimal.Decimal
}

// Percentage returns the rate as a whole-number percent.
func (l Line) Percentage() decimal.Decimal {
	return l.Rate.Mul(hundred)
}

// Breakdown is the full split of a buyer-paid amount. All money fields are
// rounded to two places; PlatformNet absorbs the rounding so that
// Base + sum(Lines) == Final exactly. Lines holds the party shares followed
// by the system-maintenance and platform shares.
type Breakdown struct {
	Final             decimal.Decimal
	Base              decimal.Decimal
	PlatformMargin    decimal.Decimal
	SystemMaintenance decimal.Decimal
	RemainingMargin   decimal.Decimal
	HomeDeliveryFee   decimal.Decimal
	PlatformNet       decimal.Decimal
	Lines             []Line
}

// PartyLines returns the lines paid out to parties.
func (b Breakdown) PartyLines() []Line {
	var out []Line
	for _, line := range b.Lines {
		if !line.Type.IsPlatformShare() {
			out = append(out, line)
		}
	}
	return out
}

// PartyTotal sums every party line.
func (b Breakdown) PartyTotal() decimal.Decimal {
	return sumLines(b.PartyLines())
}

// LineTotal sums every line, platform shares included.
func (b Breakdown) LineTotal() decimal.Decimal {
	return sumLines(b.Lines)
}

func sumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}

// AmountFor returns the amount of the given line type, or zero.
func (b Breakdown) AmountFor(t enums.CommissionType) decimal.Decimal {
	for _, line := range b.Lines {
		if line.Type == t {
			return line.Amount
		}
	}
	return decimal.Zero
}

// Calculate splits in.FinalAmount across the platform and participating
// parties. It never fails: a non-positive amount yields an empty breakdown.
func Calculate(in Input, rates Rates) Breakdown {
	if !in.FinalAmount.IsPositive() {
		return Breakdown{
			Final:             decimal.Zero,
			Base:              decimal.Zero,
			PlatformMargin:    decimal.Zero,
			SystemMaintenance: decimal.Zero,
			RemainingMargin:   decimal.Zero,
			HomeDeliveryFee:   decimal.Zero,
			PlatformNet:       decimal.Zero,
		}
	}

	final := in.FinalAmount
	base := final.Div(one.Add(rates.PlatformMargin))
	platformMargin := final.Sub(base)
	systemMaintenance := platformMargin.Mul(rates.SystemMaintenance)
	remaining := platformMargin.Sub(systemMaintenance)

	var lines []Line
	addLine := func(t enums.CommissionType, party *uuid.UUID, rate decimal.Decimal) {
		if party == nil || *party == uuid.Nil {
			return
		}
		amount := remaining.Mul(rate).Round(moneyPlaces)
		if !amount.IsPositive() {
			return
		}
		lines = append(lines, Line{
			Type:       t,
			PartyID:    *party,
			PartyRole:  t.PayeeRole(),
			Rate:       rate,
			BaseAmount: remaining.Round(moneyPlaces),
			Amount:     amount,
		})
	}

	// The pickup-delivery agent carries goods to the pickup site, so the line
	// only exists on pickup orders.
	homeDeliveryFee := decimal.Zero
	switch in.DeliveryMethod {
	case enums.DeliveryMethodHomeDelivery:
		homeDeliveryFee = base.Mul(rates.HomeDeliveryFee)
		addLine(enums.CommissionTypeFastDeliveryAgent, in.FastDeliveryAgentID, rates.FastDeliveryAgent)
	case enums.DeliveryMethodPickup:
		if in.PSMRole == enums.PSMRoleHelped {
			addLine(enums.CommissionTypePSMHelped, in.PSMID, rates.PSMHelped)
		} else {
			addLine(enums.CommissionTypePSMReceived, in.PSMID, rates.PSMReceived)
		}
		addLine(enums.CommissionTypePickupDeliveryAgent, in.PickupDeliveryAgentID, rates.PickupDeliveryAgent)
	}
	addLine(enums.CommissionTypeReferral, in.ReferrerID, rates.Referral)

	out := Breakdown{
		Final:             final.Round(moneyPlaces),
		Base:              base.Round(moneyPlaces),
		PlatformMargin:    platformMargin.Round(moneyPlaces),
		SystemMaintenance: systemMaintenance.Round(moneyPlaces),
		RemainingMargin:   remaining.Round(moneyPlaces),
		HomeDeliveryFee:   homeDeliveryFee.Round(moneyPlaces),
		Lines:             lines,
	}
	out.PlatformNet = out.Final.Sub(out.Base).Sub(out.SystemMaintenance).Sub(out.PartyTotal())
	out.Lines = append(out.Lines, platformShares(out, rates)...)
	return out
}

// platformShares turns the platform's cut into lines so the whole split can
// be read from Lines alone. Zero shares are omitted.
func platformShares(b Breakdown, rates Rates) []Line {
	var shares []Line
	if !b.SystemMaintenance.IsZero() {
		shares = append(shares, Line{
			Type:       enums.CommissionTypeSystemMaintenance,
			PartyRole:  enums.PartyRoleSystem,
			Rate:       rates.SystemMaintenance,
			BaseAmount: b.PlatformMargin,
			Amount:     b.SystemMaintenance,
		})
	}
	if !b.PlatformNet.IsZero() {
		rate := decimal.Zero
		if b.RemainingMargin.IsPositive() {
			rate = b.PlatformNet.Div(b.RemainingMargin).Round(4)
		}
		shares = append(shares, Line{
			Type:       enums.CommissionTypePlatform,
			PartyRole:  enums.PartyRoleSystem,
			Rate:       rate,
			BaseAmount: b.RemainingMargin,
			Amount:     b.PlatformNet,
		})
	}
	return shares
}

// InputFromOrder derives the calculator input from a persisted order. On a
// home delivery the assigned agent is the fast-delivery agent and no
// pickup-delivery agent is paid; on a pickup order the assigned agent
// carries goods to the pickup site unless a dedicated pickup-delivery agent
// is recorded.
func InputFromOrder(order *models.Order) Input {
	in := Input{
		FinalAmount:    order.FinalAmount,
		DeliveryMethod: order.DeliveryMethod,
		ReferrerID:     order.ReferrerID,
	}
	switch order.DeliveryMethod {
	case enums.DeliveryMethodHomeDelivery:
		in.FastDeliveryAgentID = order.AgentID
	case enums.DeliveryMethodPickup:
		in.PSMID = order.PSMID
		in.PSMRole = enums.PSMRoleReceived
		if order.PSMRole != nil {
			in.PSMRole = *order.PSMRole
		}
		in.PickupDeliveryAgentID = order.PickupDeliveryAgentID
		if in.PickupDeliveryAgentID == nil {
			in.PickupDeliveryAgentID = order.AgentID
		}
	}
	return in
}
