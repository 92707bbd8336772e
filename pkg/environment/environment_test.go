package environment

import (
	"testing"

	"github.com/chaosmend/chaosmend-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetENVDefaults(t *testing.T) {
	details := types.CampaignDetails{}
	GetENV(&details)

	assert.Equal(t, 10, details.Experiments)
	assert.Equal(t, "default", details.Namespace)
	assert.Equal(t, EnvSimpleMicro, details.Env)
	assert.Equal(t, 300, details.InjectionTimeout)
	assert.Equal(t, 1, details.MaxRetries)
	assert.Equal(t, MethodProbing, details.Method)
	assert.False(t, details.StrictRestart)
	assert.False(t, details.ModelToolFallback)
	assert.Equal(t, "envs/simple-micro/manifest.yaml", details.ManifestPath)
}

func TestGetENVOverrides(t *testing.T) {
	t.Setenv("EXPERIMENT_COUNT", "3")
	t.Setenv("RUNTIME_ENV", EnvOnlineBoutique)
	t.Setenv("STRICT_RESTART", "true")
	t.Setenv("REMEDIATION_METHOD", MethodOneshot)
	t.Setenv("MODEL_TOOL_FALLBACK", "true")

	details := types.CampaignDetails{}
	GetENV(&details)

	assert.Equal(t, 3, details.Experiments)
	assert.Equal(t, EnvOnlineBoutique, details.Env)
	assert.True(t, details.StrictRestart)
	assert.Equal(t, MethodOneshot, details.Method)
	assert.True(t, details.ModelToolFallback)
	assert.Equal(t, "envs/online-boutique/manifest.yaml", details.ManifestPath)
}

func TestLookupUnknownEnv(t *testing.T) {
	_, err := Lookup("metaverse")
	assert.Error(t, err)
}

func TestRandomServiceRespectsDiskPool(t *testing.T) {
	for i := 0; i < 20; i++ {
		service, err := RandomService(EnvOnlineBoutique, types.DiskIO)
		require.NoError(t, err)
		assert.Equal(t, "redis-cart", service)
	}
}

func TestRandomServiceDrawsFromCatalog(t *testing.T) {
	catalog, err := Lookup(EnvTrainTicket)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		service, err := RandomService(EnvTrainTicket, types.CPUStress)
		require.NoError(t, err)
		assert.Contains(t, catalog.Services, service)
	}
}

func TestRandomFailureIsSupported(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.True(t, RandomFailure().IsValid())
	}
}
