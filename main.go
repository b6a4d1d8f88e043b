package main

import (
	"fmt"
	"log"
	"os"
	"os/user"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/samber/lo"

	"github.com/tiptop-linux/tiptop/pkg/app"
	"github.com/tiptop-linux/tiptop/pkg/config"
	"github.com/tiptop-linux/tiptop/pkg/errsink"
	applog "github.com/tiptop-linux/tiptop/pkg/log"
	"github.com/tiptop-linux/tiptop/pkg/perf"
	"github.com/tiptop-linux/tiptop/pkg/procfs"
	"github.com/tiptop-linux/tiptop/pkg/screen"
	"github.com/tiptop-linux/tiptop/pkg/utils"
)

const DEFAULT_VERSION = "unversioned"

var (
	commit  string
	version = DEFAULT_VERSION
	date    string

	batchFlag     = false
	cmdlineFlag   = false
	cpuMinFlag    = -1.0
	delayFlag     = -1.0
	errorFileFlag = ""
	epochFlag     = false
	debugFlag     = false
	threadsFlag   = false
	kernelFlag    = false
	idleFlag      = false
	listFlag      = false
	maxIterFlag   = 0
	outFileFlag   = ""
	onlyConfFlag  = false
	onlyFlag      = ""
	screenFlag    = ""
	stickyFlag    = false
	timestampFlag = false
	userFlag      = ""
	showUserFlag  = false
	configFlag    = ""
	watchFlag     = ""
)

func main() {
	updateBuildInfo()

	info := fmt.Sprintf(
		"%s\nDate: %s\nCommit: %s\nOS: %s\nArch: %s",
		version, date, commit, runtime.GOOS, runtime.GOARCH,
	)

	flaggy.SetName("tiptop")
	flaggy.SetDescription("Display hardware performance counters for Linux tasks")
	flaggy.DefaultParser.AdditionalHelpPrepend = "tiptop [option] [-- command [args...]]"

	flaggy.Bool(&batchFlag, "b", "batch", "run in batch mode")
	flaggy.Bool(&cmdlineFlag, "c", "cmdline", "use command line instead of process name")
	flaggy.Float64(&cpuMinFlag, "", "cpu-min", "minimum %CPU to display a process")
	flaggy.Float64(&delayFlag, "d", "delay", "delay in seconds between refreshes")
	flaggy.String(&errorFileFlag, "E", "error-file", "file where errors are logged")
	flaggy.Bool(&epochFlag, "", "epoch", "add epoch at beginning of each line")
	flaggy.Bool(&debugFlag, "g", "debug", "debug")
	flaggy.Bool(&threadsFlag, "H", "threads", "show threads")
	flaggy.Bool(&kernelFlag, "K", "kernel", "show kernel activity (only for root)")
	flaggy.Bool(&idleFlag, "i", "idle", "also display idle processes")
	flaggy.Bool(&listFlag, "", "list-screens", "display list of available screens")
	flaggy.Int(&maxIterFlag, "n", "iterations", "max number of refreshes")
	flaggy.String(&outFileFlag, "o", "output", "output file in batch mode")
	flaggy.Bool(&onlyConfFlag, "", "only-conf", "disable default screens, only configuration")
	flaggy.String(&onlyFlag, "p", "pid", "only display task with this PID/name")
	flaggy.String(&screenFlag, "S", "screen", "screen number or name to display")
	flaggy.Bool(&stickyFlag, "", "sticky", "keep final status of dead processes")
	flaggy.Bool(&timestampFlag, "", "timestamp", "add timestamp at beginning of each line")
	flaggy.String(&userFlag, "u", "user", "only show user's processes")
	flaggy.Bool(&showUserFlag, "U", "show-user", "show user name")
	flaggy.String(&configFlag, "W", "config", "directory of the configuration file")
	flaggy.String(&watchFlag, "w", "watch", "watch this process (highlighted)")
	flaggy.SetVersion(info)

	flaggy.Parse()

	opts := config.NewOptions()

	appConfig, err := config.NewAppConfig("tiptop", version, commit, date, debugFlag, opts)
	if err != nil {
		log.Fatal(err.Error())
	}

	logger := applog.NewLogger(appConfig)
	errs := errsink.New(logger)
	screens := screen.NewRegistry(errs)

	app, err := app.NewApp(appConfig, logger, opts, errs, screens)
	if err != nil {
		log.Fatal(err.Error())
	}

	if path, ok := config.FindConfig(configFlag); ok {
		if err := config.LoadConfig(path, opts, screens, errs); err == nil {
			opts.ConfigFile = true
			logger.WithField("path", path).Debug("config file successfully parsed")
		} else {
			logger.WithError(err).Debug("could not parse config file")
		}
	}

	applyFlags(opts)
	opts.SpawnArgs = flaggy.TrailingArguments

	if err := errs.SetOutput(opts.Batch, opts.PathErrorFile); err != nil {
		log.Fatal(err.Error())
	}

	if opts.DefaultScreen {
		screens.RegisterBuiltins()
	}
	screens.Tamp()

	if listFlag {
		fmt.Println("Available screens:")
		for i, s := range screens.All() {
			fmt.Printf("%2d: '%s', %s\n", i, s.Name, s.Desc)
		}
		os.Exit(0)
	}

	// make sure counters can attach at all before going any further
	if err := perf.Check(procfs.Default); err != nil {
		if msg, known := app.KnownError(err); known {
			log.Fatal(msg)
		}
		log.Fatal(err.Error())
	}

	screenNum, screenName := resolveScreenFlag()

	err = app.Run(screenNum, screenName)
	if err != nil {
		newErr := errors.Wrap(err, 0)
		stackTrace := newErr.ErrorStack()
		app.Log.Error(stackTrace)
		log.Fatalf("an error occurred\n\n%s", stackTrace)
	}
}

// applyFlags merges the command line into the option record. Boolean
// flags are toggles: they invert whatever the configuration file set.
func applyFlags(opts *config.Options) {
	if batchFlag {
		opts.Batch = !opts.Batch
	}
	if cmdlineFlag {
		opts.ShowCmdline = !opts.ShowCmdline
	}
	if epochFlag {
		opts.ShowEpoch = !opts.ShowEpoch
	}
	if debugFlag {
		opts.Debug = !opts.Debug
	}
	if threadsFlag {
		opts.ShowThreads = !opts.ShowThreads
	}
	if idleFlag {
		opts.Idle = !opts.Idle
	}
	if stickyFlag {
		opts.Sticky = !opts.Sticky
	}
	if timestampFlag {
		opts.ShowTimestamp = !opts.ShowTimestamp
	}
	if showUserFlag {
		opts.ShowUser = !opts.ShowUser
	}
	if onlyConfFlag {
		opts.DefaultScreen = false
	}
	if kernelFlag {
		if opts.EUID != 0 {
			log.Fatal("kernel mode (-K --kernel) not available: you are not root")
		}
		opts.ShowKernel = !opts.ShowKernel
	}

	if cpuMinFlag >= 0 {
		opts.CPUThreshold = cpuMinFlag
	}
	if delayFlag > 0 {
		opts.Delay = delayFlag
		if opts.Delay < 0.1 {
			opts.Delay = 1
		}
	}
	if maxIterFlag > 0 {
		opts.MaxIter = maxIterFlag
	}
	if errorFileFlag != "" {
		opts.PathErrorFile = errorFileFlag
	}
	if outFileFlag != "" {
		f, err := os.Create(outFileFlag)
		if err != nil {
			log.Fatalf("could not open '%s': %v", outFileFlag, err)
		}
		opts.Out = f
	}
	if onlyFlag != "" {
		opts.OnlyPID, _ = strconv.Atoi(onlyFlag)
		if opts.OnlyPID == 0 {
			opts.OnlyName = onlyFlag
		}
	}
	if watchFlag != "" {
		opts.WatchPID, _ = strconv.Atoi(watchFlag)
		if opts.WatchPID == 0 {
			opts.WatchName = watchFlag
		}
	}
	if userFlag != "" {
		if uid, err := strconv.Atoi(userFlag); err == nil {
			opts.WatchUID = uid
		} else {
			u, err := user.Lookup(userFlag)
			if err != nil {
				log.Fatalf("user name '%s' does not exist", userFlag)
			}
			opts.WatchUID, _ = strconv.Atoi(u.Uid)
		}
	}
}

// resolveScreenFlag interprets -S as a screen index when numeric, a
// name substring otherwise.
func resolveScreenFlag() (int, string) {
	if screenFlag == "" {
		return 0, ""
	}
	if num, err := strconv.Atoi(screenFlag); err == nil {
		return num, ""
	}
	return 0, screenFlag
}

func updateBuildInfo() {
	if version == DEFAULT_VERSION {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			revision, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.revision"
			})
			if ok {
				commit = revision.Value
				// when built from source we show the version as the
				// abbreviated commit hash
				version = utils.SafeTruncate(revision.Value, 7)
			}

			// if version hasn't been set we assume that neither has the date
			time, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.time"
			})
			if ok {
				date = time.Value
			}
		}
	}
}
