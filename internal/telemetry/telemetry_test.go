package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_SDK_DISABLED", "")

	cfg := ConfigFromEnv("loyaltysvc")
	assert.Equal(t, ExporterOTLP, cfg.Exporter)
	assert.Equal(t, "loyaltysvc", cfg.ServiceName)
	assert.Equal(t, 0.25, cfg.SampleRatio)
	assert.True(t, cfg.Insecure)

	t.Setenv("OTEL_SDK_DISABLED", "true")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "lots")
	cfg = ConfigFromEnv("loyaltysvc")
	assert.Equal(t, ExporterNone, cfg.Exporter)
	assert.Equal(t, 1.0, cfg.SampleRatio)
}

func TestMiddlewareExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{
		ServiceName: "loyaltysvc-test",
		Exporter:    ExporterStdout,
		SampleRatio: 1,
		Writer:      &buf,
	})
	require.NoError(t, err)

	h := Middleware("loyaltysvc")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/menu", nil))

	require.NoError(t, shutdown(context.Background()))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "loyaltysvc GET")
	assert.Contains(t, buf.String(), "loyaltysvc-test")
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{Exporter: "zipkin", SampleRatio: 1})
	assert.Error(t, err)
}
