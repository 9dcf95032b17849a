package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Envelope is the versioned wire form of an inbound business event
type Envelope struct {
	EventID    uuid.UUID       `json:"eventId" validate:"required"`
	TenantID   uuid.UUID       `json:"tenantId" validate:"required"`
	OccurredAt time.Time       `json:"occurredAt" validate:"required"`
	LocationID *uuid.UUID      `json:"locationId,omitempty"`
	EventType  string          `json:"eventType" validate:"required"`
	Data       json.RawMessage `json:"data" validate:"required"`
}

// InboundDecoder turns envelopes into typed posting events. The data payload
// is decoded into the struct registered for the event type and validated.
type InboundDecoder struct {
	validate *validator.Validate
}

// NewInboundDecoder creates a decoder that reports JSON field names in errors
func NewInboundDecoder() *InboundDecoder {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &InboundDecoder{validate: v}
}

// Decode parses raw envelope JSON
func (d *InboundDecoder) Decode(raw []byte) (*posting.Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "malformed event envelope: %v", err)
	}
	return d.DecodeEnvelope(&env)
}

// DecodeEnvelope validates env and decodes its payload
func (d *InboundDecoder) DecodeEnvelope(env *Envelope) (*posting.Event, error) {
	if err := d.validate.Struct(env); err != nil {
		return nil, validationError("event envelope", err)
	}

	payload := posting.NewPayload(env.EventType)
	if payload == nil {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "unsupported event type %s", env.EventType)
	}
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "malformed %s payload: %v", env.EventType, err)
	}
	if err := d.validate.Struct(payload); err != nil {
		return nil, validationError(env.EventType+" payload", err)
	}

	return posting.NewEvent(env.EventID, env.TenantID, env.EventType, env.OccurredAt, env.LocationID, payload), nil
}

// SupportedTypes lists the event types the decoder accepts
func (d *InboundDecoder) SupportedTypes() []string {
	return append([]string(nil), posting.InboundEventTypes...)
}

func validationError(subject string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.NewDomainErrorf(shared.CodeValidation, "invalid %s: %v", subject, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fieldPath(fe), fe.Tag()))
	}
	return shared.NewDomainErrorf(shared.CodeValidation, "invalid %s: %s", subject, strings.Join(fields, ", "))
}

// fieldPath strips the root struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}
