package app

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"

	"github.com/tiptop-linux/tiptop/pkg/display"
	"github.com/tiptop-linux/tiptop/pkg/screen"
	"github.com/tiptop-linux/tiptop/pkg/task"
)

// batchLoop streams one block of rows per tick to the output writer.
// The sort follows the first column, like the live mode default.
func (app *App) batchLoop(sampler *task.Sampler, table *task.Table, scr *screen.Screen) error {
	opts := app.Opts
	out := opts.Out
	activeCol := 0

	app.printBanner(scr)

	header := screen.GenHeader(scr, screen.HeaderLayout{
		Batch:     true,
		Timestamp: opts.ShowTimestamp,
		Epoch:     opts.ShowEpoch,
		ShowUser:  opts.ShowUser,
	}, task.TxtLen-1, activeCol)
	fmt.Fprintf(out, "\n%s\n", header)

	// short first delay so the initial deltas mean something
	delay := 200 * time.Millisecond

	for iter := 0; opts.MaxIter == 0 || iter < opts.MaxIter; iter++ {
		epoch := time.Now().Unix()

		numDead := sampler.Update(table, scr)
		if !opts.ShowThreads {
			sampler.Accumulate(table)
		}

		display.Build(table, scr, opts, -1, activeCol)
		sorted := display.Sorted(table, opts, activeCol, scr.NumColumns(), display.Descending)

		printed := 0
		for _, t := range sorted {
			if t.Skip {
				continue
			}
			if !opts.ShowThreads && !t.IsMain() {
				continue
			}
			if opts.ShowTimestamp {
				fmt.Fprintf(out, "%6d ", iter)
			}
			if opts.ShowEpoch {
				fmt.Fprintf(out, "%10d ", epoch)
			}
			fmt.Fprint(out, t.Row)
			if t.Dead {
				fmt.Fprint(out, " DEAD")
			}
			if app.watched(t) {
				fmt.Fprint(out, " <---")
			}
			fmt.Fprintln(out)
			printed++
		}
		if printed > 0 {
			fmt.Fprintln(out)
		}

		if opts.CommandDone && opts.Sticky {
			break
		}
		if numDead > 0 && !opts.Sticky {
			table.Compact()
		}

		// a child exit wakes the loop early for a final refresh
		select {
		case <-time.After(delay):
		case <-app.wakeup:
		}
		delay = time.Duration(opts.Delay * float64(time.Second))
	}
	return nil
}

func (app *App) watched(t *task.Task) bool {
	opts := app.Opts
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

// printBanner writes the uptime/load/date preamble and the option
// summary, the way every top introduces itself.
func (app *App) printBanner(scr *screen.Screen) {
	opts := app.Opts
	out := opts.Out

	fmt.Fprintf(out, "%s - ", app.Config.Name)
	if up, err := host.Uptime(); err == nil {
		days := up / 86400
		hours := (up % 86400) / 3600
		minutes := (up % 3600) / 60
		fmt.Fprintf(out, "up %d days, %d:%02d", days, hours, minutes)
	}
	if avg, err := load.Avg(); err == nil {
		fmt.Fprintf(out, ", load average: %.2f, %.2f, %.2f", avg.Load1, avg.Load5, avg.Load15)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, time.Now().Format("Mon Jan _2 15:04:05 MST 2006"))

	fmt.Fprintf(out, "delay: %.2f  idle: %d  threads: %d\n",
		opts.Delay, boolInt(opts.Idle), boolInt(opts.ShowThreads))

	if opts.WatchPID != 0 {
		fmt.Fprintf(out, "watching pid %d\n", opts.WatchPID)
	} else if opts.WatchName != "" {
		fmt.Fprintf(out, "watching pid '%s'\n", opts.WatchName)
	}
	if opts.OnlyPID != 0 {
		fmt.Fprintf(out, "only pid %d\n", opts.OnlyPID)
	} else if opts.OnlyName != "" {
		fmt.Fprintf(out, "only pid '%s'\n", opts.OnlyName)
	}
	if opts.WatchUID != -1 {
		name := strconv.Itoa(opts.WatchUID)
		if u, err := user.LookupId(name); err == nil {
			name = u.Username
		}
		fmt.Fprintf(out, "watching uid %d '%s'\n", opts.WatchUID, name)
	}

	fmt.Fprintf(out, "Screen %d: %s\n", app.Screens.Index(scr), scr.Name)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
