//go:build linux

package perf

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiptop-linux/tiptop/pkg/procfs"
)

func limitsFS(t *testing.T, pid int, content string) procfs.FS {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "limits"), []byte(content), 0o644))
	return procfs.NewFS(root)
}

func TestNewBudgetFromLimits(t *testing.T) {
	fs := limitsFS(t, 42,
		"Max cpu time              unlimited            unlimited            seconds\n"+
			"Max open files            1024                 4096                 files\n")

	b := NewBudget(fs, 42)
	assert.Equal(t, 1024-slack, b.Limit())
	assert.Equal(t, 0, b.Open())
}

func TestNewBudgetFallback(t *testing.T) {
	// a limits file too small to be useful falls back to the default
	fs := limitsFS(t, 42, "Max open files            5                    5                    files\n")
	b := NewBudget(fs, 42)
	assert.Equal(t, fallbackLimit, b.Limit())
}

func TestBudgetAccounting(t *testing.T) {
	b := NewBudgetWithLimit(2)

	assert.True(t, b.tryAcquire())
	assert.True(t, b.tryAcquire())
	assert.True(t, b.Exhausted())
	assert.False(t, b.tryAcquire())
	assert.Equal(t, 2, b.Open())

	b.release()
	assert.False(t, b.Exhausted())
	assert.True(t, b.tryAcquire())

	// release never goes negative
	b.release()
	b.release()
	b.release()
	assert.Equal(t, 0, b.Open())
}
