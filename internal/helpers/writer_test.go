package helpers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixWriter(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		writes []string
		want   string
	}{
		{"single line", "build | ", []string{"hello\n"}, "build | hello\n"},
		{"split line", "> ", []string{"hel", "lo\n"}, "> hello\n"},
		{"multiple lines", "x ", []string{"a\nb\n"}, "x a\nx b\n"},
		{"incomplete line buffered", "p ", []string{"no newline"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			pw := NewPrefixWriter(&buf, tt.prefix)
			for _, w := range tt.writes {
				n, err := pw.Write([]byte(w))
				assert.NoError(t, err)
				assert.Equal(t, len(w), n)
			}
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSafeIDPrefix(t *testing.T) {
	assert.Equal(t, "abcdef123456", SafeIDPrefix("abcdef1234567890"))
	assert.Equal(t, "abcde", SafeIDPrefix("abcde"))
}
