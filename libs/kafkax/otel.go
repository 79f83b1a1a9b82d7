package kafkax

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Headers adapts Kafka message headers to an OpenTelemetry TextMapCarrier. Set replaces an
// existing key instead of appending a duplicate.
type Headers []kafka.Header

var _ propagation.TextMapCarrier = (*Headers)(nil)

func (h *Headers) Get(key string) string { return HeaderValue(*h, key) }

func (h *Headers) Keys() []string {
	keys := make([]string, len(*h))
	for i, hdr := range *h {
		keys[i] = hdr.Key
	}
	return keys
}

func (h *Headers) Set(key, value string) {
	for i := range *h {
		if (*h)[i].Key == key {
			(*h)[i].Value = []byte(value)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

// InjectTraceHeaders adds the span context of ctx to headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := Headers(headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	return carrier
}

// ExtractTraceContext continues the producer's trace in a consumer.
func ExtractTraceContext(ctx context.Context, msg kafka.Message) context.Context {
	carrier := Headers(msg.Headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}
