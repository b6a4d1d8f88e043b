// Package gui implements the full-screen live mode on top of gocui:
// a header bar with state badges, the sorted task rows, and overlay
// panels for help and the error scrollback.
package gui

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jesseduffield/gocui"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/tiptop-linux/tiptop/pkg/config"
	"github.com/tiptop-linux/tiptop/pkg/display"
	"github.com/tiptop-linux/tiptop/pkg/errsink"
	"github.com/tiptop-linux/tiptop/pkg/screen"
	"github.com/tiptop-linux/tiptop/pkg/task"
	"github.com/tiptop-linux/tiptop/pkg/utils"
)

// Action tells the caller what to do after the main loop ends.
type Action int

const (
	ActionQuit Action = iota
	ActionNextScreen
	ActionPrevScreen
	// ActionRebuild asks for a fresh task table on the same screen,
	// after a filter changed underneath it.
	ActionRebuild
)

// Gui wraps the gocui Gui object and the monitoring state it renders.
type Gui struct {
	g   *gocui.Gui
	Log *logrus.Entry

	opts    *config.Options
	errs    *errsink.Sink
	screens *screen.Registry
	screen  *screen.Screen
	sampler *task.Sampler
	table   *task.Table

	wakeup chan struct{}

	activeCol int
	order     display.Order
	iteration int
	numDead   int
	printed   int
	message   string

	showErrors  bool
	errorScroll int
	showHelp    bool

	action Action
}

// NewGui builds the live mode for one screen.
func NewGui(log *logrus.Entry, opts *config.Options, errs *errsink.Sink, screens *screen.Registry,
	scr *screen.Screen, sampler *task.Sampler, table *task.Table, wakeup chan struct{},
) *Gui {
	return &Gui{
		Log:     log,
		opts:    opts,
		errs:    errs,
		screens: screens,
		screen:  scr,
		sampler: sampler,
		table:   table,
		wakeup:  wakeup,
	}
}

// Run starts the main loop and blocks until the user quits or asks for
// a rebuild. The tick loop runs in its own goroutine and posts updates
// through g.Update, so all rendering happens on the gocui thread.
func (gui *Gui) Run() (Action, error) {
	g, err := gocui.NewGui(gocui.OutputTrue, false, gocui.NORMAL, false, map[rune]string{})
	if err != nil {
		return ActionQuit, err
	}
	defer g.Close()
	gui.g = g

	g.SetManager(gocui.ManagerFunc(gui.layout))
	if err := gui.keybindings(g); err != nil {
		return ActionQuit, err
	}

	stop := make(chan struct{})
	defer close(stop)
	go gui.tickLoop(stop)

	err = g.MainLoop()
	if err != nil && err != gocui.ErrQuit {
		return ActionQuit, err
	}
	return gui.action, nil
}

// tickLoop drives the sampler. The delay option is re-read every lap
// so the 'd' prompt takes effect from the next wait on; a wakeup
// (child exit) refreshes early.
func (gui *Gui) tickLoop(stop chan struct{}) {
	delay := 200 * time.Millisecond
	for {
		gui.g.Update(func(g *gocui.Gui) error {
			if gui.tick() {
				return gocui.ErrQuit
			}
			return nil
		})

		select {
		case <-stop:
			return
		case <-gui.wakeup:
		case <-time.After(delay):
		}
		delay = time.Duration(gui.opts.Delay * float64(time.Second))
	}
}

// tick runs one sample-build cycle. It reports true when the
// iteration budget is spent.
func (gui *Gui) tick() bool {
	opts := gui.opts

	gui.numDead = gui.sampler.Update(gui.table, gui.screen)
	if !opts.ShowThreads {
		gui.sampler.Accumulate(gui.table)
	}

	width, _ := gui.g.Size()
	display.Build(gui.table, gui.screen, opts, width-1, gui.activeCol)

	gui.iteration++
	if gui.numDead > 0 && !opts.Sticky {
		// compact at the end of the tick: with sticky off, Build has
		// already skipped the dead rows
		defer gui.table.Compact()
	}
	return opts.MaxIter != 0 && gui.iteration >= opts.MaxIter
}

func (gui *Gui) layout(g *gocui.Gui) error {
	width, height := g.Size()
	if height < 6 || width < 20 {
		return nil
	}

	if v, err := setView(g, "status", -1, -1, width, 3); err != nil {
		return err
	} else {
		v.Frame = false
		gui.renderStatus(v, width)
	}
	if v, err := setView(g, "header", -1, 2, width, 4); err != nil {
		return err
	} else {
		v.Frame = false
		v.Clear()
		hdr := screen.GenHeader(gui.screen, screen.HeaderLayout{ShowUser: gui.opts.ShowUser}, width-1, gui.activeCol)
		fmt.Fprint(v, utils.ColoredString(utils.WithPadding(hdr, width-1), color.ReverseVideo))
	}
	if v, err := setView(g, "tasks", -1, 3, width, height-1); err != nil {
		return err
	} else {
		v.Frame = false
		gui.renderTasks(v, height-5)
	}
	if v, err := setView(g, "footer", -1, height-2, width, height); err != nil {
		return err
	} else {
		v.Frame = false
		gui.renderFooter(v)
	}

	if g.CurrentView() == nil {
		if _, err := g.SetCurrentView("tasks"); err != nil {
			return err
		}
	}

	if gui.showErrors {
		if err := gui.renderErrorPanel(g, width, height); err != nil {
			return err
		}
	} else {
		_ = g.DeleteView("errors")
	}
	if gui.showHelp {
		if err := gui.renderHelpPanel(g, width, height); err != nil {
			return err
		}
	} else {
		_ = g.DeleteView("help")
	}
	return nil
}

// renderStatus draws the banner line with its state badges, the task
// counts and the screen name, plus a transient message if one is due.
func (gui *Gui) renderStatus(v *gocui.View, width int) {
	opts := gui.opts
	v.Clear()

	badges := []string{}
	if gui.errs.Count() > 0 {
		badges = append(badges, "[errors]")
	}
	if opts.ConfigFile {
		badges = append(badges, "[conf]")
	}
	if opts.EUID == 0 {
		badges = append(badges, "[root]")
	}
	if opts.WatchUID != -1 {
		badges = append(badges, "[uid]")
	}
	if opts.OnlyPID != 0 || opts.OnlyName != "" {
		badges = append(badges, "[pid]")
	}
	if opts.ShowKernel {
		badges = append(badges, "[kernel]")
	}
	if opts.Sticky {
		badges = append(badges, "[sticky]")
	}
	if opts.ShowThreads {
		badges = append(badges, "[threads]")
	}
	if opts.Idle {
		badges = append(badges, "[idle]")
	}
	if opts.Debug {
		badges = append(badges, "[debug]")
	}

	banner := fmt.Sprintf("tiptop - %s", strings.Join(badges, " "))
	fmt.Fprintln(v, utils.SafeTruncate(banner, width-1))

	counts := fmt.Sprintf("Tasks: %3d total, %3d displayed", gui.table.Len(), gui.printed)
	if opts.Sticky {
		counts += fmt.Sprintf(", %3d dead", gui.numDead)
	}
	scrName := utils.SafeTruncate(gui.screen.Name, utils.Max(0, width-len(counts)-15))
	line := utils.WithPadding(counts, utils.Max(0, width-14-len(scrName))) +
		utils.ColoredString(fmt.Sprintf("screen %2d: %s", gui.screens.Index(gui.screen), scrName), color.FgYellow)
	fmt.Fprintln(v, line)

	if gui.message != "" {
		fmt.Fprintln(v, utils.ColoredString(gui.message, color.FgCyan))
		gui.message = ""
	}
}

func (gui *Gui) renderTasks(v *gocui.View, maxRows int) {
	opts := gui.opts
	v.Clear()

	sorted := display.Sorted(gui.table, opts, gui.activeCol, gui.screen.NumColumns(), gui.order)
	printed := 0
	for _, t := range sorted {
		if t.Skip {
			continue
		}
		if !opts.ShowThreads && !t.IsMain() {
			continue
		}
		row := t.Row
		switch {
		case t.Dead:
			row = utils.ColoredString(row, color.FgRed)
		case gui.watched(t):
			row = utils.ColoredString(row, color.FgGreen)
		}
		fmt.Fprintln(v, row)
		printed++
		if printed >= maxRows {
			break
		}
	}
	gui.printed = printed
}

func (gui *Gui) renderFooter(v *gocui.View) {
	opts := gui.opts
	v.Clear()

	left := ""
	if opts.ShowTimestamp {
		left = fmt.Sprintf("Iteration: %d  ", gui.iteration)
	}
	if n := gui.errs.Count(); n > 0 {
		left += utils.ColoredString(fmt.Sprintf("%d errors (e to view)", n), color.FgRed)
	}
	if opts.ShowEpoch {
		left += fmt.Sprintf("  Epoch: %d", time.Now().Unix())
	}
	fmt.Fprint(v, left)
}

func (gui *Gui) watched(t *task.Task) bool {
	opts := gui.opts
	if opts.WatchPID != 0 && t.TID == opts.WatchPID {
		return true
	}
	if opts.WatchName == "" {
		return false
	}
	if opts.ShowCmdline {
		return strings.Contains(t.Cmdline, opts.WatchName)
	}
	return strings.Contains(t.Name, opts.WatchName)
}

// setView creates or resizes a view; the "unknown view" error just
// means it did not exist yet.
func setView(g *gocui.Gui, name string, x0, y0, x1, y1 int) (*gocui.View, error) {
	v, err := g.SetView(name, x0, y0, x1, y1, 0)
	if err != nil && err.Error() != "unknown view" {
		return nil, err
	}
	return v, nil
}

func (gui *Gui) renderErrorPanel(g *gocui.Gui, width, height int) error {
	v, err := setView(g, "errors", 2, height/3, width-3, height-2)
	if err != nil {
		return err
	}
	v.Clear()
	v.Title = fmt.Sprintf(" %d errors detected (e to close) ", gui.errs.Count())

	lines := gui.errs.Lines()
	if gui.errorScroll > len(lines)-1 {
		gui.errorScroll = utils.Max(0, len(lines)-1)
	}
	if gui.errorScroll == 0 {
		fmt.Fprintln(v, "BEGIN")
	} else {
		fmt.Fprintln(v, ".....")
	}
	visible := height - 2 - height/3 - 3
	for i := gui.errorScroll; i < len(lines) && i-gui.errorScroll < visible; i++ {
		fmt.Fprintln(v, lines[i])
	}
	if gui.errorScroll+visible >= len(lines) {
		fmt.Fprintln(v, "END")
	} else {
		fmt.Fprintln(v, ".....")
	}
	return nil
}

func (gui *Gui) renderHelpPanel(g *gocui.Gui, width, height int) error {
	v, err := setView(g, "help", 2, 2, width-3, height-2)
	if err != nil {
		return err
	}
	v.Clear()
	v.Title = fmt.Sprintf(" Help for screen '%s' (h to close) ", gui.screen.Name)

	fmt.Fprintln(v, "Keys: q quit  R reverse sort  </> move sort column  +/- switch screen")
	fmt.Fprintln(v, "      H threads  i idle  S sticky  U user  c cmdline  K kernel")
	fmt.Fprintln(v, "      p only pid  u user filter  w watch  d delay  k kill  W export  e errors")
	fmt.Fprintln(v, "")
	fmt.Fprintln(v, "Columns:")
	for _, c := range gui.screen.Columns() {
		fmt.Fprintf(v, "  %s  %s\n", utils.WithPadding(strings.TrimSpace(c.Header), 10), c.Description)
	}
	return nil
}

// refresh forces a sample outside the regular cadence.
func (gui *Gui) refresh() {
	select {
	case gui.wakeup <- struct{}{}:
	default:
	}
}

func (gui *Gui) finish(action Action) error {
	gui.action = action
	return gocui.ErrQuit
}

func (gui *Gui) keybindings(g *gocui.Gui) error {
	type binding struct {
		key     interface{}
		handler func(*gocui.Gui, *gocui.View) error
	}
	bindings := []binding{
		{'q', func(*gocui.Gui, *gocui.View) error { return gui.finish(ActionQuit) }},
		{gocui.KeyCtrlC, func(*gocui.Gui, *gocui.View) error { return gui.finish(ActionQuit) }},
		{'+', func(*gocui.Gui, *gocui.View) error { return gui.finish(ActionNextScreen) }},
		{gocui.KeyArrowRight, func(*gocui.Gui, *gocui.View) error { return gui.finish(ActionNextScreen) }},
		{'-', func(*gocui.Gui, *gocui.View) error { return gui.finish(ActionPrevScreen) }},
		{gocui.KeyArrowLeft, func(*gocui.Gui, *gocui.View) error { return gui.finish(ActionPrevScreen) }},

		{'R', gui.handleReverseSort},
		{'>', gui.handleSortRight},
		{'<', gui.handleSortLeft},
		{'i', gui.toggle(&gui.opts.Idle, "Idle")},
		{'S', gui.toggle(&gui.opts.Sticky, "Sticky")},
		{'U', gui.toggle(&gui.opts.ShowUser, "User column")},
		{'c', gui.toggle(&gui.opts.ShowCmdline, "Command line")},
		{'g', gui.toggle(&gui.opts.Debug, "Debug")},
		{'H', gui.handleThreads},
		{'K', gui.handleKernel},
		{'e', gui.handleErrorPanel},
		{'h', gui.handleHelp},
		{'W', gui.handleExport},
		{'p', gui.handleOnlyPrompt},
		{'u', gui.handleUIDPrompt},
		{'w', gui.handleWatchPrompt},
		{'d', gui.handleDelayPrompt},
		{'s', gui.handleDelayPrompt},
		{'k', gui.handleKillPrompt},

		{gocui.KeyArrowUp, gui.scrollErrors(-1)},
		{gocui.KeyArrowDown, gui.scrollErrors(1)},
		{gocui.KeyPgup, gui.scrollErrors(-10)},
		{gocui.KeyPgdn, gui.scrollErrors(10)},
	}
	for _, b := range bindings {
		if err := g.SetKeybinding("", b.key, gocui.ModNone, ignoreWhilePrompting(b.handler)); err != nil {
			return err
		}
	}
	return nil
}

// ignoreWhilePrompting keeps global keys from firing while the user is
// typing into a prompt.
func ignoreWhilePrompting(handler func(*gocui.Gui, *gocui.View) error) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if cur := g.CurrentView(); cur != nil && cur.Name() == "prompt" {
			return nil
		}
		return handler(g, v)
	}
}

func (gui *Gui) toggle(flag *bool, name string) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		*flag = !*flag
		state := "Off"
		if *flag {
			state = "On"
		}
		gui.message = name + " " + state
		gui.refresh()
		return nil
	}
}

func (gui *Gui) handleReverseSort(*gocui.Gui, *gocui.View) error {
	gui.order = gui.order.Toggle()
	return nil
}

func (gui *Gui) handleSortRight(*gocui.Gui, *gocui.View) error {
	if gui.activeCol < gui.screen.NumColumns() {
		gui.activeCol++
	}
	gui.refresh()
	return nil
}

func (gui *Gui) handleSortLeft(*gocui.Gui, *gocui.View) error {
	if gui.activeCol > display.SortByPID {
		gui.activeCol--
	}
	gui.refresh()
	return nil
}

// handleThreads toggles per-thread display. Switching to per-thread
// view resets the accumulated stats of the main threads, which would
// otherwise show garbage for one tick.
func (gui *Gui) handleThreads(*gocui.Gui, *gocui.View) error {
	gui.opts.ShowThreads = !gui.opts.ShowThreads
	if gui.opts.ShowThreads {
		gui.sampler.ResetValues(gui.table)
		gui.message = "Show threads On"
	} else {
		gui.message = "Show threads Off"
	}
	gui.refresh()
	return nil
}

func (gui *Gui) handleKernel(*gocui.Gui, *gocui.View) error {
	if gui.opts.ShowKernel {
		gui.opts.ShowKernel = false
		gui.message = "Kernel mode Off"
		return gui.finish(ActionRebuild)
	}
	if gui.opts.EUID != 0 {
		gui.message = "Kernel mode only available to root."
		return nil
	}
	gui.opts.ShowKernel = true
	gui.message = "Kernel mode On"
	return gui.finish(ActionRebuild)
}

func (gui *Gui) handleErrorPanel(*gocui.Gui, *gocui.View) error {
	gui.showErrors = !gui.showErrors
	gui.errorScroll = 0
	return nil
}

func (gui *Gui) handleHelp(*gocui.Gui, *gocui.View) error {
	gui.showHelp = !gui.showHelp
	return nil
}

func (gui *Gui) handleExport(*gocui.Gui, *gocui.View) error {
	if err := config.ExportConfig(gui.opts, gui.screens); err != nil {
		gui.message = ".tiptoprc not written: already exists in current directory?"
	} else {
		gui.message = ".tiptoprc written"
	}
	return nil
}

func (gui *Gui) scrollErrors(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if !gui.showErrors {
			return nil
		}
		gui.errorScroll = utils.Max(0, gui.errorScroll+delta)
		return nil
	}
}

func (gui *Gui) handleOnlyPrompt(*gocui.Gui, *gocui.View) error {
	return gui.prompt("Only display process: ", func(input string) error {
		gui.opts.OnlyPID, _ = strconv.Atoi(input)
		gui.opts.OnlyName = ""
		if gui.opts.OnlyPID == 0 && input != "" {
			gui.opts.OnlyName = input
		}
		return gui.finish(ActionRebuild)
	})
}

func (gui *Gui) handleUIDPrompt(*gocui.Gui, *gocui.View) error {
	return gui.prompt("Which user (blank for all): ", func(input string) error {
		switch {
		case input == "":
			gui.opts.WatchUID = -1
		default:
			uid, err := lookupUID(input)
			if err != nil {
				gui.message = "User name does not exist."
				return nil
			}
			gui.opts.WatchUID = uid
		}
		return gui.finish(ActionRebuild)
	})
}

func (gui *Gui) handleWatchPrompt(*gocui.Gui, *gocui.View) error {
	return gui.prompt("Watch process: ", func(input string) error {
		gui.opts.WatchPID, _ = strconv.Atoi(input)
		gui.opts.WatchName = ""
		if gui.opts.WatchPID == 0 && input != "" {
			gui.opts.WatchName = input
		}
		gui.refresh()
		return nil
	})
}

func (gui *Gui) handleDelayPrompt(*gocui.Gui, *gocui.View) error {
	title := fmt.Sprintf("Change delay from %.2f to: ", gui.opts.Delay)
	return gui.prompt(title, func(input string) error {
		delay, err := strconv.ParseFloat(input, 64)
		if err != nil || delay < 0.1 {
			delay = 1.0
		}
		gui.opts.Delay = delay
		return nil
	})
}

func (gui *Gui) handleKillPrompt(*gocui.Gui, *gocui.View) error {
	return gui.prompt("PID to kill: ", func(input string) error {
		pid, err := strconv.Atoi(input)
		if err != nil || pid <= 0 {
			gui.message = "Not valid"
			return nil
		}
		return gui.prompt(fmt.Sprintf("Kill PID %d with signal [15]: ", pid), func(sigStr string) error {
			sig, _ := strconv.Atoi(sigStr)
			if sig == 0 {
				sig = 15
			}
			if err := unix.Kill(pid, unix.Signal(sig)); err != nil {
				gui.message = fmt.Sprintf("Kill of PID '%d' with '%d' failed: %v", pid, sig, err)
			}
			return nil
		})
	})
}

// prompt opens a one-line editable view; Enter submits its content to
// onDone, Esc cancels.
func (gui *Gui) prompt(title string, onDone func(string) error) error {
	width, height := gui.g.Size()
	v, err := setView(gui.g, "prompt", 2, height/2-1, width-3, height/2+1)
	if err != nil {
		return err
	}
	v.Title = " " + strings.TrimSpace(title) + " "
	v.Editable = true
	v.Clear()
	if _, err := gui.g.SetCurrentView("prompt"); err != nil {
		return err
	}

	closePrompt := func() {
		_ = gui.g.DeleteKeybinding("prompt", gocui.KeyEnter, gocui.ModNone)
		_ = gui.g.DeleteKeybinding("prompt", gocui.KeyEsc, gocui.ModNone)
		_ = gui.g.DeleteView("prompt")
		_, _ = gui.g.SetCurrentView("tasks")
	}

	if err := gui.g.SetKeybinding("prompt", gocui.KeyEnter, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			input := strings.TrimSpace(v.Buffer())
			closePrompt()
			return onDone(input)
		}); err != nil {
		return err
	}
	return gui.g.SetKeybinding("prompt", gocui.KeyEsc, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			closePrompt()
			return nil
		})
}

func lookupUID(input string) (int, error) {
	if uid, err := strconv.Atoi(input); err == nil {
		return uid, nil
	}
	u, err := user.Lookup(input)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(u.Uid)
}
