package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppName  = "memsync"
	FileName = AppName + ".toml"
)

// Context locates the files of one run. It replaces a process wide base
// path: construct it once and pass it to whatever needs the filesystem.
type Context struct {
	BaseDir string
}

// NewContext uses dir, or DefaultBaseDir when dir is empty, and creates it.
func NewContext(dir string) (*Context, error) {
	if dir == "" {
		dir = DefaultBaseDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &Context{BaseDir: dir}, nil
}

// DefaultBaseDir is $XDG_CONFIG_HOME/memsync, else $HOME/.config/memsync,
// else the directory of the executable, else the working directory.
func DefaultBaseDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", AppName)
	}
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(exe)
	}
	return "."
}

// Path resolves name against the base directory. Absolute names are kept.
func (c *Context) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.BaseDir, name)
}

func (c *Context) ConfigFile() string {
	return c.Path(FileName)
}
