package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

func TestEveryFeatureHasPrompt(t *testing.T) {
	for _, feature := range usagedomain.Features() {
		got, err := System(feature, nil)
		require.NoError(t, err, feature)
		assert.NotEmpty(t, got)
	}
}

func TestSystemRendersContext(t *testing.T) {
	got, err := System(usagedomain.FeatureMeetingSummary, map[string]string{
		"meeting_title": "Weekly sync",
		"language":      "ko",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "Meeting: Weekly sync")
	assert.NotContains(t, got, "Participants:")
	assert.Contains(t, got, "- language: ko")
}

func TestSystemUnknownFeature(t *testing.T) {
	_, err := System("teleport", nil)
	assert.Error(t, err)
}
