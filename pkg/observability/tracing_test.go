package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pranav-jay26/Crossbow/pkg/config"
)

func TestSpanAttributesAndStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, parent := StartSpan(context.Background(), "convert")
	parent.SetAttribute("source", "book.xlsx")
	parent.SetAttribute("rows", 42)
	parent.SetAttribute("strict", true)

	_, child := StartSpan(ctx, "chunk")
	child.End(errors.New("boom"))
	parent.End(nil)

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "chunk", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())

	assert.Equal(t, "convert", ended[1].Name())
	assert.Equal(t, codes.Ok, ended[1].Status().Code)
	assert.Len(t, ended[1].Attributes(), 3)
}

func TestSetupWritesSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	cfg := config.NewConfig().Observability
	shutdown, err := Setup(cfg, &buf, "test")
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "convert")
	span.End(nil)
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "convert"`)
}
