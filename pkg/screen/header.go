package screen

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// HeaderLayout selects the fixed leading fields of the header row.
type HeaderLayout struct {
	Batch     bool
	Timestamp bool
	Epoch     bool
	ShowUser  bool
}

// Header column indices outside the screen's own columns: -1 sorts by
// PID, NumColumns() sorts by the task name.
const (
	SortByPID = -1
)

// GenHeader builds the header line for s, bracketing the column the
// sort currently follows. Column -1 is the PID, column NumColumns()
// the command name. The result is truncated at width.
func GenHeader(s *Screen, layout HeaderLayout, width, activeCol int) string {
	var sb strings.Builder

	if layout.Timestamp && layout.Batch {
		sb.WriteString("timest ")
	}
	if layout.Epoch && layout.Batch {
		sb.WriteString("     epoch ")
	}

	markOn, markOff := ' ', ' '
	if activeCol == SortByPID {
		markOn, markOff = '[', ']'
	}
	if layout.ShowUser {
		fmt.Fprintf(&sb, " %cPID%c user      ", markOn, markOff)
	} else {
		fmt.Fprintf(&sb, " %cPID%c", markOn, markOff)
	}

	for i, col := range s.columns {
		switch {
		case i == activeCol:
			sb.WriteByte('[')
		case i-1 == activeCol && i != 0:
			sb.WriteByte(']')
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(col.Header)
	}

	switch {
	case activeCol == len(s.columns)-1:
		sb.WriteByte(']')
	case activeCol == len(s.columns):
		sb.WriteByte('[')
	default:
		sb.WriteByte(' ')
	}
	sb.WriteString("COMMAND")
	if activeCol == len(s.columns) {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(' ')
	}

	return runewidth.Truncate(sb.String(), width, "")
}
