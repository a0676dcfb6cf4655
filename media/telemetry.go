package media

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/tnqbao/gau-media-service/media"

var tracer = otel.Tracer(instrumentationName)

type instruments struct {
	variantsWritten metric.Int64Counter
	bytesWritten    metric.Int64Counter
	cleanupFailures metric.Int64Counter
	fetchDuration   metric.Float64Histogram
}

func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	variants, err := meter.Int64Counter("media.variants.written",
		metric.WithDescription("Variants written to a disk"))
	if err != nil {
		variants, _ = fallback.Int64Counter("media.variants.written")
	}
	written, err := meter.Int64Counter("media.bytes.written",
		metric.WithDescription("Bytes written to a disk"), metric.WithUnit("By"))
	if err != nil {
		written, _ = fallback.Int64Counter("media.bytes.written")
	}
	failures, err := meter.Int64Counter("media.cleanup.failures",
		metric.WithDescription("Best-effort physical deletes that failed"))
	if err != nil {
		failures, _ = fallback.Int64Counter("media.cleanup.failures")
	}
	fetch, err := meter.Float64Histogram("media.fetch.duration",
		metric.WithDescription("Remote fetch duration"), metric.WithUnit("s"))
	if err != nil {
		fetch, _ = fallback.Float64Histogram("media.fetch.duration")
	}

	return &instruments{
		variantsWritten: variants,
		bytesWritten:    written,
		cleanupFailures: failures,
		fetchDuration:   fetch,
	}
}
