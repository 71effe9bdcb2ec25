package config

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	path := writeTestConfig(t, `unknown_section = "value"`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoad_UnknownKey_TypoInFlatKey(t *testing.T) {
	//nolint:misspell // intentional typo to test unknown key detection
	path := writeTestConfig(t, `max_concurent = 4`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), "max_concurrent")
}

func TestLoad_UnknownKey_TypoInSyncKey(t *testing.T) {
	path := writeTestConfig(t, `skip_existng = true`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skip_existing")
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, `completely_unrelated_key = true`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"skip_hidden", "skip_hiddn", 1},
		{"max_concurent", "max_concurrent", 1},
		{"completely_different", "xyz", 19},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch_Found(t *testing.T) {
	known := []string{"skip_hidden", "skip_system_files", "strict"}
	assert.Equal(t, "skip_hidden", closestMatch("skip_hiddn", known))
}

func TestClosestMatch_NotFound(t *testing.T) {
	known := []string{"skip_hidden", "strict"}
	assert.Equal(t, "", closestMatch("completely_unrelated", known))
}

func TestBuildKeyError_KnownParent_SubField(t *testing.T) {
	// A nested key like "protected_patterns.0" has a known parent, so
	// buildKeyError should return nil.
	err := buildKeyError("protected_patterns.0")
	assert.Nil(t, err)
}

func TestBuildKeyError_UnknownParent_SubField(t *testing.T) {
	err := buildKeyError("nonexistent_section.field")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestKnownKeysList_Sorted(t *testing.T) {
	// Verify the list is sorted for deterministic Levenshtein suggestions.
	assert.True(t, sort.StringsAreSorted(knownKeysList), "knownKeysList must be sorted")
}
