package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"

	"github.com/tiptop-linux/tiptop/pkg/screen"
)

const exportHeader = `<!-- tiptop configuration file -->

<!-- Keep this file named .tiptoprc,                                      -->
<!-- and place it either in your current directory, the location          -->
<!-- specified in $TIPTOP, or in your $HOME.                              -->

`

// ExportConfig writes the current options and every registered screen
// to .tiptoprc in the current directory, canonicalizing counter types
// and configs back to names where possible. It refuses to overwrite an
// existing file.
func ExportConfig(opts *Options, reg *screen.Registry) error {
	if _, err := os.Stat(ConfigFileName); err == nil {
		return fmt.Errorf("%s already exists", ConfigFileName)
	}

	doc := xmlDoc{
		Options: &xmlOptions{Options: dumpOptions(opts)},
	}
	for _, s := range reg.All() {
		doc.Screens = append(doc.Screens, dumpScreen(s))
	}

	data, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(ConfigFileName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(exportHeader); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	_, err = f.WriteString("\n")
	return err
}

func dumpOptions(opts *Options) []xmlOption {
	boolVal := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	out := []xmlOption{
		{"cpu_threshold", strconv.FormatFloat(opts.CPUThreshold, 'f', 6, 64)},
		{"delay", strconv.FormatFloat(opts.Delay, 'f', 6, 64)},
	}
	if opts.WatchName != "" {
		out = append(out, xmlOption{"watch_name", opts.WatchName})
	}
	out = append(out, xmlOption{"max_iter", strconv.Itoa(opts.MaxIter)})
	if opts.OnlyName != "" {
		out = append(out, xmlOption{"only_name", opts.OnlyName})
	}
	out = append(out,
		xmlOption{"only_pid", strconv.Itoa(opts.OnlyPID)},
		xmlOption{"debug", boolVal(opts.Debug)},
		xmlOption{"batch", boolVal(opts.Batch)},
	)
	return out
}

func dumpScreen(s *screen.Screen) xmlScreen {
	xs := xmlScreen{Name: s.Name, Desc: s.Desc}
	for _, c := range s.Counters() {
		xs.Counters = append(xs.Counters, xmlCounter{
			Alias:  c.Alias,
			Config: screen.ConfigName(c.Config),
			Type:   screen.TypeName(c.Type),
		})
	}
	for _, c := range s.Columns() {
		xs.Columns = append(xs.Columns, xmlColumn{
			Header: c.Header,
			Format: c.Format,
			Desc:   c.Description,
			Expr:   c.Expr.String(),
		})
	}
	return xs
}
