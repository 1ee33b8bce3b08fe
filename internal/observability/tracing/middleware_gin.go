package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "paramstore/http"

// GinMiddleware opens a server span per request. Route, parameter and editor
// attributes are attached once the handler chain has run, because
// authentication happens further down the chain.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		span.SetName("HTTP " + c.Request.Method + " " + route)

		reqCtx := c.Request.Context()
		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
		}
		if requestID := obscontext.RequestIDFromContext(reqCtx); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			attrs = append(attrs, attribute.String("parameter.id", id))
		}
		if code := strings.TrimSpace(c.Param("code")); code != "" {
			attrs = append(attrs, attribute.String("parameter.override_country", code))
		}
		if actor, ok := obscontext.ActorFromContext(reqCtx); ok {
			attrs = append(attrs,
				attribute.String("editor.id", actor.EditorID),
				attribute.String("editor.role", actor.Role),
			)
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		status := c.Writer.Status()
		switch {
		case status == http.StatusConflict:
			span.AddEvent("version_conflict")
		case status >= http.StatusInternalServerError:
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
