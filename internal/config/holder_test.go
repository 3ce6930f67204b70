package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHolder(t *testing.T) {
	cfg := DefaultConfig()
	h := NewHolder(cfg, "/etc/dormouse/config.toml")

	require.NotNil(t, h)
	assert.Equal(t, cfg, h.Config())
	assert.Equal(t, "/etc/dormouse/config.toml", h.Path())
}

func TestHolder_Update(t *testing.T) {
	cfg1 := DefaultConfig()
	h := NewHolder(cfg1, "/tmp/config.toml")

	cfg2 := DefaultConfig()
	cfg2.Retry.RetrySeconds = 600

	h.Update(cfg2)

	got := h.Config()
	assert.Equal(t, cfg2, got)
	assert.NotEqual(t, cfg1, got)
}

func TestHolder_PathImmutable(t *testing.T) {
	h := NewHolder(DefaultConfig(), "/original/path.toml")

	assert.Equal(t, "/original/path.toml", h.Path())
	assert.Equal(t, "/original/path.toml", h.Path())
}

func TestHolder_ConcurrentReadWrite(t *testing.T) {
	cfg := DefaultConfig()
	h := NewHolder(cfg, "/tmp/config.toml")

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = h.Config()
		}()
	}

	for i := range 5 {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			c := DefaultConfig()
			c.Retry.RetrySeconds = 300 + n

			h.Update(c)
		}(i)
	}

	wg.Wait()
}
