package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectLauncherValidation(t *testing.T) {
	l := NewRedirectLauncher()
	ctx := context.Background()

	t.Run("app deep link accepted", func(t *testing.T) {
		require.NoError(t, l.Open(ctx, "wallet://pay/ord-1"))
	})

	t.Run("empty target rejected", func(t *testing.T) {
		assert.Error(t, l.Open(ctx, ""))
	})

	t.Run("schemeless target rejected", func(t *testing.T) {
		assert.Error(t, l.Open(ctx, "wallet.example/pay"))
	})

	t.Run("insecure web target rejected", func(t *testing.T) {
		assert.Error(t, l.Open(ctx, "http://wallet.example/pay"))
	})
}
