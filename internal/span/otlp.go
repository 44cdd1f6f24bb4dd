package span

import (
	"encoding/binary"
	"encoding/hex"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

// FromOTLP flattens OTLP ResourceSpans -> ScopeSpans -> Span into Flat values,
// preserving wire order.
func FromOTLP(resourceSpans []*tracepb.ResourceSpans) []Flat {
	var out []Flat
	for _, rs := range resourceSpans {
		service := ServiceName(rs.GetResource())
		for _, ss := range rs.GetScopeSpans() {
			for _, s := range ss.GetSpans() {
				out = append(out, Flat{
					TraceID:  hex.EncodeToString(s.TraceId),
					SpanID:   hex.EncodeToString(s.SpanId),
					ParentID: hex.EncodeToString(s.ParentSpanId),
					Service:  service,
					Name:     s.Name,
					Start:    s.StartTimeUnixNano,
					End:      s.EndTimeUnixNano,
				})
			}
		}
	}
	return out
}

// ServiceName extracts the service.name attribute from an OTLP resource.
// Returns "unknown" if the service name is not found.
func ServiceName(resource *resourcepb.Resource) string {
	if resource == nil {
		return "unknown"
	}
	for _, attr := range resource.Attributes {
		if attr.Key == "service.name" {
			if sv := attr.Value.GetStringValue(); sv != "" {
				return sv
			}
		}
	}
	return "unknown"
}

// ToOTLP encodes a forest as a single OTLP ResourceSpans for the given trace
// and service. Span ids are assigned sequentially in pre-order starting at 1.
func ToOTLP(forest []Span, traceID []byte, service string) *tracepb.ResourceSpans {
	var spans []*tracepb.Span
	var next uint64

	var encode func(s Span, parent []byte)
	encode = func(s Span, parent []byte) {
		next++
		id := make([]byte, 8)
		binary.BigEndian.PutUint64(id, next)
		spans = append(spans, &tracepb.Span{
			TraceId:           traceID,
			SpanId:            id,
			ParentSpanId:      parent,
			Name:              s.Name,
			Kind:              tracepb.Span_SPAN_KIND_INTERNAL,
			StartTimeUnixNano: s.Start,
			EndTimeUnixNano:   s.End,
		})
		for _, c := range s.Children {
			encode(c, id)
		}
	}
	for _, s := range forest {
		encode(s, nil)
	}

	return &tracepb.ResourceSpans{
		Resource: &resourcepb.Resource{
			Attributes: []*commonpb.KeyValue{{
				Key:   "service.name",
				Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: service}},
			}},
		},
		ScopeSpans: []*tracepb.ScopeSpans{{Spans: spans}},
	}
}
