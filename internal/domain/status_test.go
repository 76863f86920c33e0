package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeedbackType(t *testing.T) {
	t.Run("known types", func(t *testing.T) {
		for wire, want := range map[string]FeedbackType{
			"confirm": FeedbackConfirm,
			"deny":    FeedbackDeny,
			"update":  FeedbackUpdate,
			"resolve": FeedbackResolve,
		} {
			got, err := ParseFeedbackType(wire)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, wire, got.String())
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ParseFeedbackType("retract")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retract")
	})

	t.Run("case sensitive", func(t *testing.T) {
		_, err := ParseFeedbackType("CONFIRM")
		assert.Error(t, err)
	})
}

func TestHazardStatusString(t *testing.T) {
	assert.Equal(t, "unverified", StatusUnverified.String())
	assert.Equal(t, "verified", StatusVerified.String())
	assert.Equal(t, "disputed", StatusDisputed.String())
	assert.Equal(t, "resolved", StatusResolved.String())
	assert.Equal(t, "expired", StatusExpired.String())
}
