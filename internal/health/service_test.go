package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestService_Check(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64

	svc := NewService(time.Hour, map[string]CheckFunc{
		"db": func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
		"gateway": func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	})

	res := svc.Check(ctx)
	require.False(t, res.OK)
	require.Equal(t, "ok", res.Checks["db"])
	require.Equal(t, "connection refused", res.Checks["gateway"])

	// Within the ttl the cached result is served without re-probing.
	res2 := svc.Check(ctx)
	require.Equal(t, res.At, res2.At)
	require.Equal(t, int64(1), calls.Load())
}

func TestService_CheckExpires(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64

	svc := NewService(time.Millisecond, map[string]CheckFunc{
		"db": func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	})

	res := svc.Check(ctx)
	require.True(t, res.OK)
	time.Sleep(5 * time.Millisecond)
	res = svc.Check(ctx)
	require.True(t, res.OK)
	require.Equal(t, int64(2), calls.Load())
}

func TestService_NilCheckFails(t *testing.T) {
	svc := NewService(time.Hour, map[string]CheckFunc{"broken": nil})
	res := svc.Check(context.Background())
	require.False(t, res.OK)
	require.Equal(t, "invalid check", res.Checks["broken"])
}
