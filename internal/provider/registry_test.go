package provider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry(NamePaystack)
	reg.Register(&FakeAdapter{AdapterName: NamePaystack, Secret: "s1"})
	reg.Register(&FakeAdapter{AdapterName: NameFlutterwave, Secret: "s2"})

	a, err := reg.Get(NameFlutterwave)
	require.NoError(t, err)
	require.Equal(t, NameFlutterwave, a.Name())

	_, err = reg.Get("stripe")
	require.ErrorIs(t, err, ErrUnknownProvider)

	// No preference falls back to the primary.
	a, err = reg.Pick("")
	require.NoError(t, err)
	require.Equal(t, NamePaystack, a.Name())

	a, err = reg.Pick(NameFlutterwave)
	require.NoError(t, err)
	require.Equal(t, NameFlutterwave, a.Name())

	_, err = reg.Pick("stripe")
	require.ErrorIs(t, err, ErrUnknownProvider)

	require.True(t, reg.Enabled(NamePaystack))
	require.False(t, reg.Enabled("stripe"))
	require.Equal(t, []string{NameFlutterwave, NamePaystack}, reg.Names())
}
