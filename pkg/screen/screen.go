// Package screen models the user-selectable sets of performance
// counters and derived display columns, and the process-wide registry
// of them.
package screen

import (
	"strings"

	"github.com/samber/lo"

	"github.com/tiptop-linux/tiptop/pkg/errsink"
	"github.com/tiptop-linux/tiptop/pkg/expr"
)

// MaxEvents caps the counters per screen, and therefore the kernel
// handles per task.
const MaxEvents = 16

// Counter describes one kernel event a screen attaches to every task.
type Counter struct {
	Alias  string
	Type   uint32
	Config uint64
	// used counts the column expressions mentioning the alias; a
	// counter left at zero is pruned before any task is created.
	used int
}

// Used returns the reference count of the counter.
func (c Counter) Used() int { return c.used }

// Column describes one derived display column.
type Column struct {
	Header      string
	Format      string
	Description string
	Expr        expr.Expr

	// Fixed-width fillers sized to the header, drawn when the
	// expression cannot produce a value.
	EmptyField string
	ErrorField string
}

// Screen is a named ordered set of counters plus columns.
type Screen struct {
	Name string
	Desc string

	counters []Counter
	columns  []Column

	errs *errsink.Sink
}

// Counters returns the declared counters in order.
func (s *Screen) Counters() []Counter { return s.counters }

// Columns returns the accepted columns in order.
func (s *Screen) Columns() []Column { return s.columns }

// NumCounters returns the number of declared counters.
func (s *Screen) NumCounters() int { return len(s.counters) }

// NumColumns returns the number of accepted columns.
func (s *Screen) NumColumns() int { return len(s.columns) }

// CounterIndex resolves an alias to its slot in the counter array.
func (s *Screen) CounterIndex(alias string) (int, bool) {
	for i := range s.counters {
		if s.counters[i].Alias == alias {
			return i, true
		}
	}
	return 0, false
}

// AddCounter declares a counter from configuration text. The config is
// either a predefined event name or an arithmetic expression of
// numeric literals; the type is a predefined class name or a numeric
// literal, defaulting to HARDWARE when empty.
func (s *Screen) AddCounter(alias, config, typeName string) bool {
	typ, ok := counterType(typeName)
	if !ok {
		s.errs.Errorf("Bad type '%s': ignoring counter '%s'", typeName, alias)
		return false
	}

	conf, ok := counterConfig(config)
	if !ok {
		s.errs.Errorf("Bad config '%s': ignoring counter '%s'", config, alias)
		return false
	}

	return s.AddCounterValue(alias, conf, typ)
}

// AddCounterValue declares a counter from resolved numeric values.
func (s *Screen) AddCounterValue(alias string, config uint64, typ uint32) bool {
	if len(s.counters) >= MaxEvents {
		s.errs.Errorf("Too many counters (max %d) in screen '%s', ignoring '%s'",
			MaxEvents, s.Name, alias)
		return false
	}
	s.counters = append(s.counters, Counter{Alias: alias, Type: typ, Config: config})
	return true
}

// AddColumn parses and checks a column definition. A malformed
// expression or a reference to an undeclared counter rejects the
// column; accepted columns bump the reference count of every counter
// they mention.
func (s *Screen) AddColumn(header, format, desc, exprText string) bool {
	e, err := expr.Parse(exprText)
	if err != nil {
		s.errs.Errorf("Invalid expression in column '%s', screen '%s': column ignored",
			header, s.Name)
		return false
	}

	// Resolve every referenced alias before bumping any counts, so a
	// rejected column leaves the counters untouched.
	var slots []int
	ok := true
	expr.WalkRefs(e, func(r expr.CounterRef) {
		if expr.IsReserved(r.Alias) {
			return
		}
		i, found := s.CounterIndex(r.Alias)
		if !found {
			s.errs.Errorf("Undeclared counter '%s' in screen '%s': column ignored",
				r.Alias, s.Name)
			ok = false
			return
		}
		slots = append(slots, i)
	})
	if !ok {
		return false
	}
	for _, i := range slots {
		s.counters[i].used++
	}

	if desc == "" {
		desc = "(unknown)"
	}
	width := len(header)
	s.columns = append(s.columns, Column{
		Header:      header,
		Format:      format,
		Description: desc,
		Expr:        e,
		EmptyField:  filler(width, '-'),
		ErrorField:  filler(width, '?'),
	})
	return true
}

func filler(width int, last byte) string {
	if width == 0 {
		return ""
	}
	return strings.Repeat(" ", width-1) + string(last)
}

// tamp removes counters no accepted column refers to, logging each
// removal. Pruning before task creation keeps per-task handle counts
// minimal.
func (s *Screen) tamp() {
	kept := s.counters[:0]
	for _, c := range s.counters {
		if c.used == 0 {
			s.errs.Errorf("Unused counter '%s' in screen '%s'", c.Alias, s.Name)
			continue
		}
		kept = append(kept, c)
	}
	s.counters = kept
}

// Registry is the ordered list of screens known to the process.
type Registry struct {
	screens []*Screen
	errs    *errsink.Sink
}

// NewRegistry returns an empty registry reporting to errs.
func NewRegistry(errs *errsink.Sink) *Registry {
	return &Registry{errs: errs}
}

// NewScreen allocates a screen and appends it to the registry, or
// prepends it when prepend is set. Builtin screens prepend so that the
// numeric IDs of user-defined screens stay stable.
func (r *Registry) NewScreen(name, desc string, prepend bool) *Screen {
	if desc == "" {
		desc = "(no desc)"
	}
	s := &Screen{Name: name, Desc: desc, errs: r.errs}
	if prepend {
		r.screens = append([]*Screen{s}, r.screens...)
	} else {
		r.screens = append(r.screens, s)
	}
	return s
}

// Tamp prunes unused counters in every screen. Must run after all
// screens and overrides are processed and before any task is created.
func (r *Registry) Tamp() {
	for _, s := range r.screens {
		s.tamp()
	}
}

// Get returns the screen at index, or nil.
func (r *Registry) Get(index int) *Screen {
	if index < 0 || index >= len(r.screens) {
		return nil
	}
	return r.screens[index]
}

// GetByName returns the first screen whose name contains name, or nil.
func (r *Registry) GetByName(name string) *Screen {
	s, _ := lo.Find(r.screens, func(s *Screen) bool {
		return strings.Contains(s.Name, name)
	})
	return s
}

// Index returns the position of s in the registry, or -1.
func (r *Registry) Index(s *Screen) int {
	return lo.IndexOf(r.screens, s)
}

// Len returns the number of registered screens.
func (r *Registry) Len() int { return len(r.screens) }

// All returns the screens in registry order.
func (r *Registry) All() []*Screen { return r.screens }
