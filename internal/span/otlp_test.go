package span

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

func TestOTLPRoundTripPreservesShape(t *testing.T) {
	traceID := []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	rs := ToOTLP(Sample(), traceID, "sample-svc")

	flat := FromOTLP([]*tracepb.ResourceSpans{rs})
	require.Len(t, flat, 5)
	for _, f := range flat {
		assert.Equal(t, "deadbeef000000000000000000000001", f.TraceID)
		assert.Equal(t, "sample-svc", f.Service)
	}
	assert.Equal(t, "", flat[0].ParentID)
	assert.Equal(t, flat[0].SpanID, flat[1].ParentID)

	assert.Equal(t, Sample(), Assemble(flat))
}

func TestServiceNameUnknown(t *testing.T) {
	assert.Equal(t, "unknown", ServiceName(nil))
}
