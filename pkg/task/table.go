package task

import "fmt"

// Table owns every task record: an ordered sequence for iteration and
// display, plus a tid-keyed map for O(1) lookup during discovery. Both
// views hold the same pointers, so they cannot disagree on record
// contents.
type Table struct {
	tasks []*Task
	byTID map[int]*Task

	// mostRecentPID caches the last field of loadavg; when unchanged,
	// discovery skips the full directory scan.
	mostRecentPID int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{byTID: make(map[int]*Task)}
}

// Add inserts a record at the head of the sequence. A tid already in
// the table is a no-op: the first reference wins.
func (tb *Table) Add(t *Task) {
	if _, ok := tb.byTID[t.TID]; ok {
		return
	}
	tb.byTID[t.TID] = t
	tb.tasks = append([]*Task{t}, tb.tasks...)
}

// Get returns the record for tid, or nil.
func (tb *Table) Get(tid int) *Task {
	return tb.byTID[tid]
}

// del removes tid from the table. Deleting an unknown tid is a
// programming error.
func (tb *Table) del(tid int) {
	if _, ok := tb.byTID[tid]; !ok {
		panic(fmt.Sprintf("task: delete of unknown tid %d", tid))
	}
	delete(tb.byTID, tid)
	for i, t := range tb.tasks {
		if t.TID == tid {
			tb.tasks = append(tb.tasks[:i], tb.tasks[i+1:]...)
			break
		}
	}
}

// Tasks returns the live sequence, newest first.
func (tb *Table) Tasks() []*Task { return tb.tasks }

// Len returns the number of records, dead ones included until the next
// Compact.
func (tb *Table) Len() int { return len(tb.tasks) }

// Compact removes dead records, closing whatever handles they still
// hold. Skipped while sticky mode keeps dead rows around.
func (tb *Table) Compact() {
	kept := tb.tasks[:0]
	for _, t := range tb.tasks {
		if t.Dead {
			t.closeHandles()
			delete(tb.byTID, t.TID)
			continue
		}
		kept = append(kept, t)
	}
	tb.tasks = kept
}

// Close destroys the table, releasing every handle.
func (tb *Table) Close() {
	for _, t := range tb.tasks {
		t.closeHandles()
	}
	tb.tasks = nil
	tb.byTID = make(map[int]*Task)
	tb.mostRecentPID = 0
}
