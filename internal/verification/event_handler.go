package verification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/richxcame/rental-risk/pkg/common"
	"github.com/richxcame/rental-risk/pkg/eventbus"
	"github.com/richxcame/rental-risk/pkg/logger"
	"go.uber.org/zap"
)

// Subscriber is the part of the event bus the handler needs
type Subscriber interface {
	Subscribe(ctx context.Context, subject, queue string, handler eventbus.Handler) error
}

// EventHandler feeds booking and trip events into the verification lifecycle
type EventHandler struct {
	service *Service
}

// NewEventHandler creates an event handler backed by the verification service
func NewEventHandler(service *Service) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterSubscriptions subscribes to document and trip-end events
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus Subscriber) error {
	if err := bus.Subscribe(ctx, eventbus.SubjectDocumentsSubmitted, "verification-documents", h.handleDocumentsSubmitted); err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventbus.SubjectDocumentsSubmitted, err)
	}
	if err := bus.Subscribe(ctx, eventbus.SubjectTripEnded, "verification-trip-ended", h.handleTripEnded); err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventbus.SubjectTripEnded, err)
	}
	logger.Info("verification: subscribed to document and trip events")
	return nil
}

func (h *EventHandler) handleDocumentsSubmitted(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DocumentsSubmittedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal documents submitted: %w", err)
	}
	bookingID, err := uuid.Parse(data.BookingID)
	if err != nil {
		return fmt.Errorf("documents submitted: invalid booking id %q: %w", data.BookingID, err)
	}

	at := &data.SubmittedAt
	if data.SubmittedAt.IsZero() {
		at = nil
	}
	_, err = h.service.RecordDocuments(ctx, bookingID, at)
	return h.settle(err, "documents_submitted", bookingID)
}

func (h *EventHandler) handleTripEnded(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.TripEndedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal trip ended: %w", err)
	}
	bookingID, err := uuid.Parse(data.BookingID)
	if err != nil {
		return fmt.Errorf("trip ended: invalid booking id %q: %w", data.BookingID, err)
	}

	req := &TripEndRequest{
		StartOdometer:  data.StartOdometer,
		EndOdometer:    data.EndOdometer,
		StartFuelLevel: data.StartFuelLevel,
		EndFuelLevel:   data.EndFuelLevel,
		DamageReported: data.DamageReported,
	}
	if !data.EndedAt.IsZero() {
		req.EndedAt = &data.EndedAt
	}
	_, err = h.service.RecordTripEnd(ctx, bookingID, req)
	return h.settle(err, "trip_ended", bookingID)
}

// settle drops events that can never apply so they are not reported as failures
func (h *EventHandler) settle(err error, eventType string, bookingID uuid.UUID) error {
	if err == nil {
		return nil
	}
	if common.IsType(err, common.ErrorTypeConflict) || common.IsType(err, common.ErrorTypeNotFound) {
		logger.Warn("verification: skipping event",
			zap.String("event", eventType),
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", eventType, err)
}
