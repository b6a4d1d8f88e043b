package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tiptop-linux/tiptop/pkg/errsink"
	"github.com/tiptop-linux/tiptop/pkg/screen"
)

// ConfigFileName is the configuration file looked up at startup.
const ConfigFileName = ".tiptoprc"

type xmlDoc struct {
	XMLName xml.Name    `xml:"tiptop"`
	Options *xmlOptions `xml:"options"`
	Screens []xmlScreen `xml:"screen"`
}

type xmlOptions struct {
	Options []xmlOption `xml:"option"`
}

type xmlOption struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlScreen struct {
	Name     string       `xml:"name,attr"`
	Desc     string       `xml:"desc,attr,omitempty"`
	Counters []xmlCounter `xml:"counter"`
	Columns  []xmlColumn  `xml:"column"`
}

type xmlCounter struct {
	Alias  string `xml:"alias,attr"`
	Config string `xml:"config,attr"`
	Type   string `xml:"type,attr,omitempty"`
	Arch   string `xml:"arch,attr,omitempty"`
	Model  string `xml:"model,attr,omitempty"`
}

type xmlColumn struct {
	Header string `xml:"header,attr"`
	Format string `xml:"format,attr"`
	Desc   string `xml:"desc,attr,omitempty"`
	Expr   string `xml:"expr,attr"`
}

// FindConfig resolves the configuration file, first hit wins: the path
// given on the command line, the directory in $TIPTOP, the current
// directory, the home directory.
func FindConfig(cliPath string) (string, bool) {
	var dirs []string
	if cliPath != "" {
		dirs = append(dirs, cliPath)
	}
	if env := os.Getenv("TIPTOP"); env != "" {
		dirs = append(dirs, env)
	}
	dirs = append(dirs, ".")
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}

	for _, dir := range dirs {
		file := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(file); err == nil {
			return file, true
		}
	}
	return "", false
}

// LoadConfig parses a configuration file into the option record and
// the screen registry. Malformed counters and columns are skipped with
// a diagnostic; a malformed document is an error and startup proceeds
// with builtin screens only.
func LoadConfig(path string, opts *Options, reg *screen.Registry, errs *errsink.Sink) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc xmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		errs.Errorf("Could not parse config file: %v", err)
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if doc.Options != nil {
		for _, o := range doc.Options.Options {
			applyOption(opts, o.Name, o.Value)
		}
	}
	for _, xs := range doc.Screens {
		loadScreen(xs, reg, errs)
	}
	return nil
}

// applyOption merges one config-file option into the record. Most
// booleans OR with the command-line toggle so either side can switch
// them on; the display preferences are assigned outright.
func applyOption(opts *Options, name, value string) {
	atoi := func() int { v, _ := strconv.Atoi(value); return v }
	truthy := func() bool { return atoi() != 0 }

	switch name {
	case "delay":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			opts.Delay = v
		}
	case "cpu_threshold":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			opts.CPUThreshold = v
		}
	case "batch":
		opts.Batch = opts.Batch || truthy()
	case "show_cmdline":
		opts.ShowCmdline = opts.ShowCmdline || truthy()
	case "show_epoch":
		opts.ShowEpoch = opts.ShowEpoch || truthy()
	case "show_kernel":
		opts.ShowKernel = opts.ShowKernel || truthy()
	case "debug":
		opts.Debug = opts.Debug || truthy()
	case "show_timestamp":
		opts.ShowTimestamp = opts.ShowTimestamp || truthy()
	case "show_user":
		opts.ShowUser = truthy()
	case "show_threads":
		opts.ShowThreads = truthy()
	case "idle":
		opts.Idle = truthy()
	case "sticky":
		opts.Sticky = truthy()
	case "watch_uid":
		opts.WatchUID = atoi()
	case "max_iter":
		opts.MaxIter = atoi()
	case "watch_name":
		opts.WatchName = value
	case "only_name":
		opts.OnlyName = value
	case "only_pid":
		opts.OnlyPID = atoi()
	}
}

func loadScreen(xs xmlScreen, reg *screen.Registry, errs *errsink.Sink) {
	name := xs.Name
	if name == "" {
		name = "(no name)"
	}
	s := reg.NewScreen(name, xs.Desc, false)

	for _, c := range xs.Counters {
		if c.Alias == "" {
			errs.Errorf("Need a alias for a counter in screen '%s'", s.Name)
			continue
		}
		if c.Config == "" {
			errs.Errorf("Need a config for counter '%s' in screen '%s'", c.Alias, s.Name)
			continue
		}
		if c.Arch != "" && !screen.MatchTarget(c.Arch) {
			errs.Errorf("Skipping counter '%s' in screen '%s' (arch mismatch)", c.Alias, s.Name)
			continue
		}
		if c.Model != "" && !screen.MatchModel(c.Model) {
			errs.Errorf("Skipping counter '%s' in screen '%s' (model mismatch)", c.Alias, s.Name)
			continue
		}
		s.AddCounter(c.Alias, c.Config, c.Type)
	}

	for _, c := range xs.Columns {
		if c.Header == "" {
			errs.Errorf("Need a header for a column in screen '%s'", s.Name)
			continue
		}
		if c.Format == "" {
			errs.Errorf("Need a format for column '%s' in screen '%s'", c.Header, s.Name)
			continue
		}
		if c.Expr == "" {
			errs.Errorf("Need an expression for column '%s' in screen '%s'", c.Header, s.Name)
			continue
		}
		s.AddColumn(c.Header, c.Format, c.Desc, c.Expr)
	}
}
