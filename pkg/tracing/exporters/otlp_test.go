package exporters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOTLPExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported protocol", func(t *testing.T) {
		_, err := NewOTLPExporter(ctx, OTLPConfig{Endpoint: "localhost:4317", Protocol: "udp"})
		assert.ErrorContains(t, err, "unsupported OTLP protocol")
	})

	t.Run("http exporter is created without connecting", func(t *testing.T) {
		exporter, err := NewOTLPExporter(ctx, OTLPConfig{Endpoint: "localhost:4318", Protocol: ProtocolHTTP, Insecure: true})
		require.NoError(t, err)
		require.NoError(t, exporter.Shutdown(ctx))
	})
}
