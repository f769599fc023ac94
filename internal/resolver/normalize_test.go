package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain digits", input: "5550123456", expected: "5550123456"},
		{name: "formatted", input: "(555) 012-3456", expected: "5550123456"},
		{name: "international prefix trimmed to last ten", input: "+15550123456", expected: "5550123456"},
		{name: "country code variants collapse", input: "0015550123456", expected: "5550123456"},
		{name: "short number kept whole", input: "911", expected: "911"},
		{name: "letters stripped", input: "555-CALL-NOW", expected: ""},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"+1 (555) 012-3456", "5550123456", "0044 20 7946 0958"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalizing twice must not change the result")
	}
}

func TestNormalizeEquivalentFormats(t *testing.T) {
	// All representations of the same subscriber number must collapse to one key.
	variants := []string{
		"+1-555-012-3456",
		"(555) 012 3456",
		"15550123456",
		"555.012.3456",
	}
	expected := Normalize(variants[0])
	for _, v := range variants {
		assert.Equal(t, expected, Normalize(v), "variant %q", v)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("5550123456"))
	assert.True(t, Valid("012345")) // exactly six digits
	assert.False(t, Valid("12345"))
	assert.False(t, Valid("911"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("ext-42"))
}
