package errsink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorfCountsAndRetains(t *testing.T) {
	s := New(nil)

	s.Errorf("attach failed for tid %d", 42)
	s.Errorf("column %q rejected", "IPC")

	assert.Equal(t, 2, s.Count())
	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "attach failed for tid 42", lines[0])
}

func TestRingDropsOldLinesButKeepsCount(t *testing.T) {
	s := New(nil)

	for i := 0; i < maxRetained+50; i++ {
		s.Errorf("line %d", i)
	}

	assert.Equal(t, maxRetained+50, s.Count())
	lines := s.Lines()
	require.Len(t, lines, maxRetained)
	assert.Equal(t, "line 50", lines[0])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	s := New(nil)

	s.Errorf("before output is attached")
	require.NoError(t, s.SetOutput(true, path))
	s.Errorf("first")
	s.Errorf("second")
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, strings.Fields(string(data)))
}
