package config

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kelseyhightower/envconfig"
)

const queryrc = "~/.config/lumen/queryd.rc"

var (
	globalConfig *config
	once         sync.Once
)

type config struct {
	static  env
	dynamic rc
	watcher *fsnotify.Watcher
}

type (
	env struct {
		UnixSocket   string `envconfig:"LUMEN_QUERYD_SOCK"`
		CmdPrefix    string `envconfig:"LUMEN_CMD_PREFIX" default:">"`
		PruneHistory bool   `envconfig:"LUMEN_PRUNE_HISTORY" default:"true"`
		MinScore     int    `envconfig:"LUMEN_MIN_SCORE" default:"0"`
		Terminal     string `envconfig:"LUMEN_DEFAULT_TERM"`
		ListLimit    int    `envconfig:"LUMEN_LIST_LIMIT" default:"128"`
		ScanPathBins bool   `envconfig:"LUMEN_SCAN_PATH_BINS" default:"false"`
		HistoryPath  string `envconfig:"LUMEN_HISTORY_PATH"`
	}
	rc struct {
		sync.RWMutex
		additionalAppDirs []string
	}
)

// Init initializes and loads configuration
func Init() error {
	var err error
	once.Do(func() {
		globalConfig = &config{}

		// Load environment variables
		if err = envconfig.Process("", &globalConfig.static); err != nil {
			return
		}

		// Set default socket path if not provided
		if globalConfig.static.UnixSocket == "" {
			var currentUser *user.User
			if currentUser, err = user.Current(); err != nil {
				return
			}
			globalConfig.static.UnixSocket = fmt.Sprintf("/tmp/lumen-%s/queryd", currentUser.Uid)
		}

		// Expand tilde in socket path
		globalConfig.static.UnixSocket = expandPath(globalConfig.static.UnixSocket)

		// Load rc file
		if err = globalConfig.loadRC(); err != nil {
			return
		}

		// Setup file watcher
		if err = globalConfig.setupWatcher(); err != nil {
			return
		}
	})
	return err
}

// Run starts the configuration watcher loop
func Run() error {
	if globalConfig == nil {
		if err := Init(); err != nil {
			return err
		}
	}

	go globalConfig.watchLoop()
	return nil
}

// Get returns the global config instance
func Get() *config {
	if globalConfig == nil {
		Init()
	}
	return globalConfig
}

func (c *config) loadRC() error {
	rcPath := expandPath(queryrc)

	// Create directory if it doesn't exist
	rcDir := filepath.Dir(rcPath)
	if err := os.MkdirAll(rcDir, 0750); err != nil {
		return err
	}

	// Try to read rc file
	file, err := os.Open(rcPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create empty file
			file, err = os.Create(rcPath)
			if err != nil {
				return err
			}
			file.Close()
			return nil
		}
		return err
	}
	defer file.Close()

	c.dynamic.Lock()
	defer c.dynamic.Unlock()

	c.dynamic.additionalAppDirs = []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		expanded := expandPath(line)
		c.dynamic.additionalAppDirs = append(c.dynamic.additionalAppDirs, expanded)
	}

	return scanner.Err()
}

func (c *config) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	c.watcher = watcher
	rcPath := expandPath(queryrc)
	rcDir := filepath.Dir(rcPath)

	// Watch the directory
	if err := watcher.Add(rcDir); err != nil {
		return err
	}

	return nil
}

func (c *config) watchLoop() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			rcPath := expandPath(queryrc)
			if event.Name == rcPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				if err := c.loadRC(); err != nil {
					// Log error but continue
					fmt.Fprintf(os.Stderr, "Error reloading config: %v\n", err)
				}
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "Config watcher error: %v\n", err)
		}
	}
}

// AppDirs returns all directories to scan for .desktop files: the standard
// application directories plus additional directories from the rc file.
func (c *config) AppDirs() []string {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	dirs := []string{
		"/usr/share/applications",
		"/usr/local/share/applications",
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local/share/applications"))
	}
	dirs = append(dirs, c.dynamic.additionalAppDirs...)
	return dirs
}

// BinDirs returns the PATH directories to scan for executables when
// ScanPathBins is enabled.
func (c *config) BinDirs() []string {
	paths := strings.Split(os.Getenv("PATH"), ":")
	filtered := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// CmdPrefix returns the command-mode prefix string
func (c *config) CmdPrefix() string {
	if c.static.CmdPrefix == "" {
		return ">" // Default
	}
	return c.static.CmdPrefix
}

// PruneHistory returns whether stale history records are pruned on load
func (c *config) PruneHistory() bool {
	return c.static.PruneHistory
}

// MinScore returns the raw fuzzy score threshold; 0 disables the threshold
func (c *config) MinScore() int {
	return c.static.MinScore
}

// ScanPathBins returns whether PATH executables join the entry set
func (c *config) ScanPathBins() bool {
	return c.static.ScanPathBins
}

// HistoryPath returns the history database path override, if any
func (c *config) HistoryPath() string {
	if c.static.HistoryPath == "" {
		return ""
	}
	return expandPath(c.static.HistoryPath)
}

// Terminal returns the default terminal command
func (c *config) Terminal() string {
	if c.static.Terminal != "" {
		return c.static.Terminal
	}
	// Fallback to TERMINAL env var
	if term := os.Getenv("TERMINAL"); term != "" {
		return term
	}
	return "xterm" // Ultimate fallback
}

// UnixSocket returns the Unix socket path
func (c *config) UnixSocket() string {
	return c.static.UnixSocket
}

// ListLimit returns the configured list limit
func (c *config) ListLimit() int {
	if c.static.ListLimit <= 0 {
		return 128 // Default
	}
	return c.static.ListLimit
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", home, 1)
	}
	return path
}
