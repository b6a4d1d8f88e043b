package config

import (
	"os"

	"github.com/OpenPeeDeeP/xdg"
)

// AppConfig contains the base configuration fields required to boot
// the application.
type AppConfig struct {
	Name      string
	Version   string
	Commit    string
	BuildDate string
	Debug     bool
	ConfigDir string
	Options   *Options
}

// NewAppConfig makes a new app config. The config dir hosts the debug
// log; the .tiptoprc lookup has its own precedence rules (FindConfig).
func NewAppConfig(name, version, commit, date string, debuggingFlag bool, opts *Options) (*AppConfig, error) {
	configDir, err := findOrCreateConfigDir(name)
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		Name:      name,
		Version:   version,
		Commit:    commit,
		BuildDate: date,
		Debug:     debuggingFlag || os.Getenv("DEBUG") == "TRUE",
		ConfigDir: configDir,
		Options:   opts,
	}, nil
}

func findOrCreateConfigDir(projectName string) (string, error) {
	folder := os.Getenv("CONFIG_DIR")
	if folder == "" {
		folder = xdg.New("", projectName).ConfigHome()
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", err
	}
	return folder, nil
}
