package server

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// requestMetrics records a counter and duration histogram per route using the
// global MeterProvider. Attributes use the route template, not the raw path,
// to keep cardinality bounded.
func requestMetrics() gin.HandlerFunc {
	meter := otel.Meter("citizen-services/auth-service")
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Completed HTTP requests"))
	if err != nil {
		log.Printf("metrics: counter init failed: %v", err)
	}
	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"))
	if err != nil {
		log.Printf("metrics: histogram init failed: %v", err)
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.status", strconv.Itoa(c.Writer.Status())),
		)
		ctx := c.Request.Context()
		if requests != nil {
			requests.Add(ctx, 1, attrs)
		}
		if duration != nil {
			duration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), attrs)
		}
	}
}
