package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer x ,broken, =empty,tenant=credit")
	require.Equal(t, map[string]string{"authorization": "Bearer x", "tenant": "credit"}, headers)
}

func TestInitValidatesAndSkipsDisabledSignals(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
	_, err = Init(context.Background(), Config{ServiceName: "creditd", SampleRatio: 2})
	require.Error(t, err)

	shutdown, err := Init(context.Background(), Config{ServiceName: "creditd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestChainRunsInReverseAndKeepsFirstError(t *testing.T) {
	var order []int
	first := errors.New("first")
	shutdown := chain([]shutdownFunc{
		func(context.Context) error { order = append(order, 1); return errors.New("later") },
		func(context.Context) error { order = append(order, 2); return first },
	})
	require.ErrorIs(t, shutdown(context.Background()), first)
	require.Equal(t, []int{2, 1}, order)
}

func TestSamplerHonoursRatio(t *testing.T) {
	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(0).Description())
	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
