package apps

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lumen-wm/lumen-queryd/internal/entry"
)

// ParseDesktopFile parses a single .desktop file into an entry. Entries
// marked NoDisplay or Hidden are rejected with errSkipped.
func ParseDesktopFile(path string) (*entry.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	e := entry.New(DesktopID(path), "")

	scanner := bufio.NewScanner(file)
	var inDesktopEntry bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Check for section header
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section := strings.Trim(line, "[]")
			inDesktopEntry = section == "Desktop Entry"
			continue
		}

		if !inDesktopEntry {
			continue
		}

		// Parse key=value pairs
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "Name":
			e.Name = value
		case "Comment":
			e.Comment = value
		case "Keywords":
			e.Keywords = splitList(value)
		case "Exec":
			e.Exec = CleanExecCommand(value)
		case "Path":
			e.WorkDir = value
		case "Icon":
			e.Icon = value
		case "Terminal":
			e.Terminal = strings.ToLower(value) == "true"
		case "NoDisplay", "Hidden":
			if strings.ToLower(value) == "true" {
				return nil, errSkipped
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Validate required fields
	if e.Name == "" && e.Exec == "" {
		return nil, fmt.Errorf("missing required fields")
	}

	// Set default name if not set
	if e.Name == "" {
		e.Name = e.ID
	}

	return e, nil
}

// DesktopID derives the stable entry id from a .desktop file path: the file
// name without its extension.
func DesktopID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".desktop")
}

// splitList splits a semicolon-separated desktop list value.
func splitList(value string) []string {
	raw := strings.Split(value, ";")
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// CleanExecCommand removes field codes and extra spaces from an exec command
func CleanExecCommand(exec string) string {
	// Remove field codes
	exec = removeFieldCodes(exec)

	// Clean up whitespace
	fields := strings.Fields(exec)
	return strings.Join(fields, " ")
}

func removeFieldCodes(s string) string {
	var result strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '%' && i+1 < len(s) {
			// Skip % and next character if it's a known code
			next := s[i+1]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || next == '%' {
				if next == '%' {
					result.WriteByte('%')
				}
				i += 2
				continue
			}
		}
		result.WriteByte(s[i])
		i++
	}
	return result.String()
}
