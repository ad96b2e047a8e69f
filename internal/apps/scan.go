package apps

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lumen-wm/lumen-queryd/internal/entry"
)

// errSkipped marks a parsed file that is valid but not launchable
// (NoDisplay/Hidden).
var errSkipped = errors.New("entry skipped")

// Discover builds the entry working set: .desktop files from appDirs and,
// optionally, executables from binDirs. Duplicate ids are dropped, first
// wins; appDirs order therefore defines precedence.
func Discover(appDirs, binDirs []string) []*entry.Entry {
	results := make(chan *entry.Entry, 100)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanDesktopDirs(appDirs, results)
	}()
	go func() {
		defer wg.Done()
		scanBinDirs(binDirs, results)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	return collect(results)
}

// collect drains the result channel, dropping later duplicates by id.
func collect(results <-chan *entry.Entry) []*entry.Entry {
	seen := make(map[string]struct{})
	var entries []*entry.Entry
	for e := range results {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		entries = append(entries, e)
	}
	return entries
}

func scanDesktopDirs(dirs []string, results chan<- *entry.Entry) {
	for _, dir := range dirs {
		// Continue scanning other dirs even if one fails
		scanDesktopDir(dir, results)
	}
}

func scanDesktopDir(rootPath string, results chan<- *entry.Entry) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		if !strings.HasSuffix(path, ".desktop") {
			return nil
		}

		e, err := ParseDesktopFile(path)
		if err != nil {
			// Skip invalid and NoDisplay files
			return nil
		}

		results <- e
		return nil
	})
}

func scanBinDirs(dirs []string, results chan<- *entry.Entry) {
	for _, dir := range dirs {
		scanBinDir(dir, results)
	}
}

func scanBinDir(rootPath string, results chan<- *entry.Entry) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		if !isExecutable(info) {
			return nil
		}

		// Skip hidden files
		baseName := filepath.Base(path)
		if strings.HasPrefix(baseName, ".") {
			return nil
		}

		e := entry.New(path, baseName)
		e.Exec = path
		results <- e
		return nil
	})
}

func isExecutable(info os.FileInfo) bool {
	// Execute permission for user, group, or others
	mode := info.Mode()
	return mode&0111 != 0
}
