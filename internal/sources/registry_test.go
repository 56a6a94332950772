package sources

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/federated-search-service/internal/domain"
)

func TestRegistry_Register(t *testing.T) {
	t.Run("registers single connector", func(t *testing.T) {
		registry := NewRegistry()
		conn := newMockConnector(domain.SourceCrossref, true)

		registry.Register(conn)

		retrieved := registry.Get(domain.SourceCrossref)
		require.NotNil(t, retrieved)
		assert.Equal(t, conn, retrieved)
	})

	t.Run("replaces existing connector for same source", func(t *testing.T) {
		registry := NewRegistry()

		original := newMockConnector(domain.SourceCrossref, true)
		replacement := newMockConnector(domain.SourceCrossref, false)

		registry.Register(original)
		registry.Register(replacement)

		retrieved := registry.Get(domain.SourceCrossref)
		require.NotNil(t, retrieved)
		assert.False(t, retrieved.Enabled())
		assert.Len(t, registry.All(), 1)
	})

	t.Run("concurrent registration is safe", func(t *testing.T) {
		registry := NewRegistry()
		var wg sync.WaitGroup

		for i := 0; i < 10; i++ {
			for _, source := range domain.AllSources {
				wg.Add(1)
				go func(s domain.Source) {
					defer wg.Done()
					registry.Register(newMockConnector(s, true))
				}(source)
			}
		}

		wg.Wait()

		assert.Len(t, registry.All(), len(domain.AllSources))
	})
}

func TestRegistry_Get(t *testing.T) {
	t.Run("returns nil when not found", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceOpenAlex, true))

		assert.Nil(t, registry.Get(domain.SourceCrossref))
	})
}

func TestRegistry_Enabled(t *testing.T) {
	t.Run("returns only enabled connectors", func(t *testing.T) {
		registry := NewRegistry()

		registry.Register(newMockConnector(domain.SourceCrossref, true))
		registry.Register(newMockConnector(domain.SourceOpenAlex, false))
		registry.Register(newMockConnector(domain.SourceCORE, true))

		enabled := registry.Enabled()

		assert.Len(t, enabled, 2)
		for _, conn := range enabled {
			assert.True(t, conn.Enabled(), "connector %s should be enabled", conn.Source())
		}
	})

	t.Run("returns empty when all disabled", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockConnector(domain.SourceCrossref, false))

		assert.Empty(t, registry.Enabled())
	})
}

func TestRegistry_Subset(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newMockConnector(domain.SourceCrossref, true))
	registry.Register(newMockConnector(domain.SourceOpenAlex, true))
	registry.Register(newMockConnector(domain.SourceCORE, true))

	t.Run("returns requested connectors in order", func(t *testing.T) {
		subset := registry.Subset([]domain.Source{domain.SourceCORE, domain.SourceCrossref})

		require.Len(t, subset, 2)
		assert.Equal(t, domain.SourceCORE, subset[0].Source())
		assert.Equal(t, domain.SourceCrossref, subset[1].Source())
	})

	t.Run("skips unregistered sources", func(t *testing.T) {
		subset := registry.Subset([]domain.Source{domain.SourceCrossref, domain.SourceDOAJ})

		require.Len(t, subset, 1)
		assert.Equal(t, domain.SourceCrossref, subset[0].Source())
	})
}
