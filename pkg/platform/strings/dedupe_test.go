package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "trims whitespace",
			input:    []string{"  foo  ", "bar  ", "  baz"},
			expected: []string{"foo", "bar", "baz"},
		},
		{
			name:     "combined: trim, dedupe, remove empty",
			input:    []string{"  foo ", "bar", "foo", "", "  ", "bar"},
			expected: []string{"foo", "bar"},
		},
		{
			name:     "preserves case",
			input:    []string{"Foo", "foo"},
			expected: []string{"Foo", "foo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "only separators", input: " , ,, ", expected: nil},
		{name: "comma separated", input: "123,456", expected: []string{"123", "456"}},
		{name: "mixed separators and duplicates", input: " 123, 456 789;123 ", expected: []string{"123", "456", "789"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}

func TestUnwrap(t *testing.T) {
	const cutset = "<>\"'`"
	tests := []struct {
		input    string
		expected string
	}{
		{input: "abc", expected: "abc"},
		{input: "  abc \n", expected: "abc"},
		{input: `"abc"`, expected: "abc"},
		{input: `<abc>`, expected: "abc"},
		{input: ` "<abc>" `, expected: "abc"},
		{input: `'123:AA-bb'`, expected: "123:AA-bb"},
		{input: `""`, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Unwrap(tt.input, cutset))
		})
	}
}
