package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and trims trailing separator",
			input:    "/Subscriptions/ABC/resourceGroups/RG1/",
			expected: "/subscriptions/abc/resourcegroups/rg1",
		},
		{
			name:     "strips interior whitespace",
			input:    "/subscriptions/abc /providers/Microsoft.Compute",
			expected: "/subscriptions/abc/providers/microsoft.compute",
		},
		{
			name:     "strips zero width space and nbsp",
			input:    "/sub\u200bscriptions/\u00a0abc",
			expected: "/subscriptions/abc",
		},
		{
			name:     "strips bom and joiners",
			input:    "\ufeffprojects/p1\u200d/zones",
			expected: "projects/p1/zones",
		},
		{
			name:     "multiple trailing separators",
			input:    "arn:aws:ec2:::volume/vol-1///",
			expected: "arn:aws:ec2:::volume/vol-1",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Key(tt.input))
		})
	}
}

func TestKeyIdempotent(t *testing.T) {
	inputs := []string{
		"/Subscriptions/ABC/",
		" spaced out id ",
		"\u200b weird//",
		"already-normal",
	}
	for _, in := range inputs {
		once := Key(in)
		assert.Equal(t, once, Key(once), "normalize(normalize(%q))", in)
	}
}

func TestKeyPreservesDistinctIdentifiers(t *testing.T) {
	a := Key("/subscriptions/abc/disks/disk-1")
	b := Key("/subscriptions/abc/disks/disk-2")
	assert.NotEqual(t, a, b)
}
