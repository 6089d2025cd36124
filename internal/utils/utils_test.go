package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir_Creates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	result, err := EnsureDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, result)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExpandPath_Tilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "workspace"), ExpandPath("~/workspace"))
}

func TestExpandPath_Relative(t *testing.T) {
	p := ExpandPath("some/dir")
	assert.True(t, filepath.IsAbs(p))
	assert.True(t, strings.HasSuffix(p, filepath.Join("some", "dir")))
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"hello", "hello"},
		{`a<b>c:d"e`, "a_b_c_d_e"},
		{"file/with\\slash", "file_with_slash"},
		{"a|b?c*d", "a_b_c_d"},
		{"  spaces  ", "spaces"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeFilename(tt.input))
		})
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", TruncateString("hello", 10, "..."))
	assert.Equal(t, "hello", TruncateString("hello", 5, "..."))
	assert.Equal(t, "he...", TruncateString("hello world", 5, "..."))
	assert.Equal(t, "he...", TruncateString("hello world", 5, ""))
}

func TestParseSessionKey_Valid(t *testing.T) {
	ch, id, err := ParseSessionKey("telegram:12345")
	require.NoError(t, err)
	assert.Equal(t, "telegram", ch)
	assert.Equal(t, "12345", id)
}

func TestParseSessionKey_WithColonInChatID(t *testing.T) {
	ch, id, err := ParseSessionKey("whatsapp:group:42")
	require.NoError(t, err)
	assert.Equal(t, "whatsapp", ch)
	assert.Equal(t, "group:42", id)
}

func TestParseSessionKey_Invalid(t *testing.T) {
	_, _, err := ParseSessionKey("nocolon")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session key")
}
