package router

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
	prom "github.com/courtside/scorecast/metrics/prometheus"
	"github.com/courtside/scorecast/telemetry"
)

// Dispatcher validates inbound message bodies and hands them to the routed
// handler.
type Dispatcher struct {
	router *Router
	tracer trace.Tracer
}

// NewDispatcher returns a Dispatcher over r.
func NewDispatcher(r *Router) *Dispatcher {
	return &Dispatcher{router: r, tracer: telemetry.Tracer(nil)}
}

// Dispatch processes one inbound body from session sid on the given
// namespace. A returned *events.MessageError carries text for the sender;
// any other error is internal. The validated payload is augmented with the
// namespace before the handler runs.
func (d *Dispatcher) Dispatch(ctx context.Context, namespace, sid string, body any) error {
	ctx, span := d.tracer.Start(ctx, "dispatch")
	defer span.End()

	start := time.Now()
	eventLabel := "unknown"
	status := prom.StatusSuccess
	defer func() {
		prom.RecordDispatch(eventLabel, status, time.Since(start).Seconds())
	}()

	err := d.dispatch(ctx, namespace, sid, body, &eventLabel)
	span.SetAttributes(
		attribute.String("event.type", eventLabel),
		attribute.String("namespace", namespace),
	)
	if err != nil {
		status = prom.StatusError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, namespace, sid string, body any, eventLabel *string) error {
	data, ok := body.(events.Message)
	if !ok {
		return events.NewMessageError("Data must be of type dict.")
	}

	raw := data[events.KeyType]
	if raw == nil || raw == "" {
		return events.NewMessageError("event type missing.")
	}
	s, ok := raw.(string)
	if !ok {
		return events.NewMessageError(fmt.Sprintf("Unknown event type: %v", raw))
	}
	eventType, ok := events.ParseEventType(s)
	if !ok {
		return events.NewMessageError("Unknown event type: " + s)
	}
	*eventLabel = eventType.String()

	route, ok := d.router.Definition(eventType)
	if !ok {
		return events.NewMessageError("Unknown event type: " + s)
	}

	if route.Schema != nil {
		result, err := route.Schema.Validate(gojsonschema.NewGoLoader(data))
		if err != nil {
			return fmt.Errorf("failed to validate %s payload: %w", eventType, err)
		}
		if !result.Valid() {
			for _, desc := range result.Errors() {
				logger.DebugContext(ctx, "Schema violation",
					"event_type", eventType.String(),
					"field", desc.Field(),
					"description", desc.Description())
			}
			return events.NewMessageError("Invalid data schema.")
		}
	}

	payload := maps.Clone(data)
	payload[events.KeyNamespace] = namespace
	return route.Handler.Handle(ctx, sid, payload)
}
