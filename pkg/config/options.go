// Package config handles the user-configurable state: the option
// record shared by every subsystem, the .tiptoprc XML configuration
// file, and the application bootstrap config.
package config

import (
	"io"
	"os"
)

// Options is the mutable option record. It is threaded explicitly
// through the sampler, builder and UI; nothing reads it through a
// global.
type Options struct {
	Delay        float64 // seconds between ticks
	CPUThreshold float64 // %CPU below which a task counts as idle
	MaxIter      int     // stop after this many ticks, 0 = forever

	OnlyPID   int
	OnlyName  string
	WatchPID  int
	WatchName string
	WatchUID  int

	EUID          int
	Out           io.Writer
	PathErrorFile string
	SpawnArgs     []string // command after --, spawned and watched

	Batch         bool
	ShowCmdline   bool
	ShowEpoch     bool
	ShowKernel    bool
	ShowThreads   bool
	ShowTimestamp bool
	ShowUser      bool
	Idle          bool
	Sticky        bool
	Debug         bool

	DefaultScreen bool // register builtin screens
	ConfigFile    bool // a config file was loaded
	CommandDone   bool // the spawned command has exited
}

// NewOptions returns the defaults.
func NewOptions() *Options {
	return &Options{
		Delay:         2,
		CPUThreshold:  0.00001,
		WatchUID:      -1,
		EUID:          os.Geteuid(),
		Out:           os.Stdout,
		DefaultScreen: true,
	}
}
