// Package app wires the subsystems together and drives the outer
// loop: pick a screen, build a task table, run batch or live mode,
// rebuild when the user switches screens or filters.
package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tiptop-linux/tiptop/pkg/config"
	"github.com/tiptop-linux/tiptop/pkg/errsink"
	"github.com/tiptop-linux/tiptop/pkg/gui"
	"github.com/tiptop-linux/tiptop/pkg/perf"
	"github.com/tiptop-linux/tiptop/pkg/procfs"
	"github.com/tiptop-linux/tiptop/pkg/screen"
	"github.com/tiptop-linux/tiptop/pkg/spawn"
	"github.com/tiptop-linux/tiptop/pkg/task"
)

// App struct
type App struct {
	Config  *config.AppConfig
	Log     *logrus.Entry
	Opts    *config.Options
	Errs    *errsink.Sink
	Screens *screen.Registry

	fs     procfs.FS
	child  *spawn.Child
	wakeup chan struct{}
}

// NewApp bootstrap a new application
func NewApp(cfg *config.AppConfig, logger *logrus.Entry, opts *config.Options, errs *errsink.Sink, screens *screen.Registry) (*App, error) {
	app := &App{
		Config:  cfg,
		Log:     logger,
		Opts:    opts,
		Errs:    errs,
		Screens: screens,
		fs:      procfs.Default,
		wakeup:  make(chan struct{}, 1),
	}
	return app, nil
}

// KnownError takes an error and tells us whether it's an error that we
// know about, where we can print a nicely formatted version of it
// rather than a stack trace.
func (app *App) KnownError(err error) (string, bool) {
	if strings.Contains(err.Error(), "cannot attach performance counters") ||
		strings.Contains(err.Error(), "does not support performance events") {
		return err.Error(), true
	}
	return "", false
}

// Run executes the monitor until the user quits. screenNum and
// screenName select the starting screen; the live mode can cycle from
// there.
func (app *App) Run(screenNum int, screenName string) error {
	for {
		var scr *screen.Screen
		if screenName != "" {
			scr = app.Screens.GetByName(screenName)
		} else {
			scr = app.Screens.Get(screenNum)
		}
		if scr == nil {
			return fmt.Errorf("no such screen")
		}
		screenName = ""
		screenNum = app.Screens.Index(scr)

		table := task.NewTable()
		budget := perf.NewBudget(app.fs, os.Getpid())
		sampler := task.NewSampler(app.fs, app.Opts, app.Errs, budget)

		if len(app.Opts.SpawnArgs) > 0 && app.child == nil {
			if err := app.startChild(sampler, table, scr); err != nil {
				table.Close()
				return err
			}
		}
		if app.child != nil {
			child := app.child
			sampler.Reaper = func(tid int) {
				if child.Owns(tid) {
					app.Opts.CommandDone = true
				}
			}
		}

		if app.Opts.Batch {
			err := app.batchLoop(sampler, table, scr)
			table.Close()
			return err
		}

		ui := gui.NewGui(app.Log, app.Opts, app.Errs, app.Screens, scr, sampler, table, app.wakeup)
		action, err := ui.Run()
		table.Close()
		if err != nil {
			return err
		}

		switch action {
		case gui.ActionNextScreen:
			screenNum = (screenNum + 1) % app.Screens.Len()
		case gui.ActionPrevScreen:
			screenNum = (screenNum + app.Screens.Len() - 1) % app.Screens.Len()
		case gui.ActionRebuild:
			// filters changed: same screen, fresh table
		default:
			return nil
		}
	}
}

// startChild spawns the command given after --, attaching counters to
// it before it gets a chance to run far.
func (app *App) startChild(sampler *task.Sampler, table *task.Table, scr *screen.Screen) error {
	child, err := spawn.Start(app.Opts.SpawnArgs, app.Log, func() {
		app.Opts.CommandDone = true
		select {
		case app.wakeup <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("cannot run %q: %w", strings.Join(app.Opts.SpawnArgs, " "), err)
	}
	app.child = child

	sampler.Discover(table, scr)

	// the name and command line read at startup may predate the exec;
	// fix them once the child is properly underway
	go func() {
		time.Sleep(100 * time.Millisecond)
		sampler.RefreshNameCmdline(table, child.PID(), false)
	}()
	return nil
}
