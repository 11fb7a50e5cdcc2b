package gateway

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"nftfi/crypto"
	"nftfi/native/financing"
	"nftfi/native/lending"
	"nftfi/native/token"
	"nftfi/observability"
	"nftfi/storage"
)

func TestDispatcherSerialisesCalls(t *testing.T) {
	admin := crypto.DeriveAddress([]byte("dispatcher-admin"))
	dep, err := financing.Deploy(storage.NewMemDB(), admin, token.NewLedger("WETH"), token.NewCollection(), lending.DefaultConfig())
	require.NoError(t, err)
	d := NewDispatcher(dep.Engine, observability.NewFinancingMetrics(prometheus.NewRegistry()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(context.Background(), "toggle_paused", func(e *financing.Engine) error {
				_, err := e.TogglePaused(admin)
				return err
			})
		}()
	}
	wg.Wait()

	var paused bool
	require.NoError(t, d.View(func(e *financing.Engine) error {
		paused = e.Paused()
		return nil
	}))
	require.False(t, paused, "an even number of toggles leaves the module running")
}
