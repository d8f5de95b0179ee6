package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/showbot/internal/model"
)

func TestFillPrefersConfiguredValues(t *testing.T) {
	t.Parallel()

	vault := MemoryVault{
		KeyCohumanAPIKey:      "from-keyring",
		KeyCohumanAPISecret:   "secret-from-keyring",
		KeyCohumanAccessToken: "",
	}
	cfg := &model.AppConfig{}
	cfg.Cohuman.APIKey = "from-env"

	filled := Fill(vault, cfg)

	assert.Equal(t, "from-env", cfg.Cohuman.APIKey)
	assert.Equal(t, "secret-from-keyring", cfg.Cohuman.APISecret)
	assert.Empty(t, cfg.Cohuman.AccessToken)
	assert.Equal(t, []string{KeyCohumanAPISecret}, filled)
}

func TestMemoryVault(t *testing.T) {
	t.Parallel()

	v := MemoryVault{}
	require.NoError(t, v.Set("k", "v"))

	got, err := v.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, v.Delete("k"))
	_, err = v.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}
