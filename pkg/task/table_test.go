package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddFirstWins(t *testing.T) {
	tb := NewTable()
	a := newTask(10, 10, 0)
	b := newTask(10, 99, 0)

	tb.Add(a)
	tb.Add(b) // same tid, must be ignored

	assert.Equal(t, 1, tb.Len())
	assert.Same(t, a, tb.Get(10))
}

func TestTableInsertsAtHead(t *testing.T) {
	tb := NewTable()
	tb.Add(newTask(1, 1, 0))
	tb.Add(newTask(2, 2, 0))

	tasks := tb.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, 2, tasks[0].TID)
	assert.Equal(t, 1, tasks[1].TID)
}

func TestTableDelUnknownPanics(t *testing.T) {
	tb := NewTable()
	assert.Panics(t, func() { tb.del(42) })
}

func TestCompact(t *testing.T) {
	tb := NewTable()
	for tid := 1; tid <= 4; tid++ {
		tb.Add(newTask(tid, tid, 0))
	}
	tb.Get(2).Dead = true
	tb.Get(4).Dead = true

	tb.Compact()

	assert.Equal(t, 2, tb.Len())
	assert.Nil(t, tb.Get(2))
	assert.Nil(t, tb.Get(4))

	// map and sequence agree
	for _, tk := range tb.Tasks() {
		assert.Same(t, tk, tb.Get(tk.TID))
	}
}

func TestCompactClosesHandles(t *testing.T) {
	tb := NewTable()
	tk := newTask(1, 1, 2)
	closed := 0
	tk.handles[0] = &fakeHandle{onClose: func() { closed++ }}
	tk.handles[1] = &fakeHandle{onClose: func() { closed++ }}
	tk.Dead = true
	tb.Add(tk)

	tb.Compact()
	assert.Equal(t, 2, closed)

	// closing again must not double count
	tk.closeHandles()
	assert.Equal(t, 2, closed)
}
