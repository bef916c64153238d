package verification

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/pdalogistics-backend/pkg/db"
	"github.com/angelmondragon/pdalogistics-backend/pkg/db/models"
	"github.com/angelmondragon/pdalogistics-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pdalogistics-backend/pkg/errors"
	"github.com/angelmondragon/pdalogistics-backend/pkg/validate"
)

const qrImageSize = 256

// QRPayload is the JSON document encoded in a handover QR code.
type QRPayload struct {
	OrderID   int64                  `json:"order_id" validate:"gt=0"`
	Type      enums.ConfirmationType `json:"type" validate:"required,enum"`
	Timestamp int64                  `json:"timestamp" validate:"gt=0"`
	Checksum  string                 `json:"checksum" validate:"required,len=64,hexadecimal"`
}

// QRCode is an issued payload and its PNG rendering.
type QRCode struct {
	Payload QRPayload `json:"payload"`
	PNG     []byte    `json:"-"`
}

// Checksum is the hex sha256 of order_id|type|timestamp. It detects
// tampering with the payload, not forgery.
func Checksum(orderID int64, t enums.ConfirmationType, timestamp int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%d", orderID, t, timestamp)))
	return hex.EncodeToString(sum[:])
}

// ParseQRPayload decodes the scanned QR text.
func ParseQRPayload(raw []byte) (QRPayload, error) {
	var payload QRPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return QRPayload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid qr payload")
	}
	if err := validate.Struct(payload); err != nil {
		return QRPayload{}, err
	}
	return payload, nil
}

// GenerateQR returns the order's QR code for the handover, issuing it on
// first request. Later calls render the stored payload again.
func (s *service) GenerateQR(ctx context.Context, orderID int64, t enums.ConfirmationType) (*QRCode, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !t.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid confirmation type")
	}
	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}

	stored, err := s.repo.FindQR(ctx, orderID, t)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		stored, err = s.issueQR(ctx, orderID, t)
		if err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr code")
	}

	payload := QRPayload{
		OrderID:   stored.OrderID,
		Type:      stored.Type,
		Timestamp: stored.IssuedAt,
		Checksum:  stored.Checksum,
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode qr payload")
	}
	png, err := qrcode.Encode(string(content), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render qr code")
	}
	return &QRCode{Payload: payload, PNG: png}, nil
}

func (s *service) issueQR(ctx context.Context, orderID int64, t enums.ConfirmationType) (*models.QRCode, error) {
	issuedAt := s.now().UTC().Unix()
	qr := &models.QRCode{
		OrderID:  orderID,
		Type:     t,
		IssuedAt: issuedAt,
		Checksum: Checksum(orderID, t, issuedAt),
	}
	if err := s.repo.CreateQR(ctx, qr); err != nil {
		if !dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store qr code")
		}
		// a concurrent request issued it first
		existing, findErr := s.repo.FindQR(ctx, orderID, t)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load qr code")
		}
		return existing, nil
	}
	return qr, nil
}

// VerifyQR checks a scanned payload against its checksum and the record
// issued for the order.
func (s *service) VerifyQR(ctx context.Context, payload QRPayload) (*VerifyResult, error) {
	if err := validate.Struct(payload); err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, payload.OrderID)
	}
	return s.verifyQR(ctx, s.repo, payload)
}

func (s *service) verifyQR(ctx context.Context, repo Repository, payload QRPayload) (*VerifyResult, error) {
	expected := Checksum(payload.OrderID, payload.Type, payload.Timestamp)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(payload.Checksum)) != 1 {
		return s.qrResult(ctx, false, ReasonChecksum), nil
	}

	stored, err := repo.FindQR(ctx, payload.OrderID, payload.Type)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.qrResult(ctx, false, ReasonUnknownQR), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr code")
	}
	if stored.IssuedAt != payload.Timestamp || stored.Checksum != payload.Checksum {
		return s.qrResult(ctx, false, ReasonChecksum), nil
	}
	return s.qrResult(ctx, true, ""), nil
}

func (s *service) qrResult(ctx context.Context, valid bool, reason string) *VerifyResult {
	s.record(ctx, enums.ConfirmationMethodQR, valid, reason)
	return &VerifyResult{Valid: valid, Reason: reason}
}
