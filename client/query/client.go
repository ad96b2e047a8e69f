package query

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

// Row represents one visible entry as reported by the daemon
type Row struct {
	ID    string
	Score int
	Name  string
}

// Client handles the connection to lumen-queryd
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
	socket string
}

const protoVer = "TXT01" // query protocol, text format, v01

// NewClient creates a new client and connects to the daemon
func NewClient() (*Client, error) {
	socketPath, err := getSocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", socketPath, err)
	}

	// Send header
	if _, err := conn.Write([]byte(protoVer)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send header: %w", err)
	}

	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		socket: socketPath,
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SendCommand sends a raw command with string arguments
func (c *Client) SendCommand(cmdName string, args []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCommand(cmdName, args)
}

func (c *Client) sendCommand(cmdName string, args []string) error {
	for _, arg := range args {
		if _, err := fmt.Fprintf(c.conn, "\"%s\n", arg); err != nil {
			return fmt.Errorf("failed to send argument: %w", err)
		}
	}

	if _, err := fmt.Fprintf(c.conn, "%s\n", cmdName); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}

	return nil
}

// Query sets the raw query text and reports the mode: "search" or
// "command".
func (c *Client) Query(text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("query", []string{text}); err != nil {
		return "", err
	}

	attrs, _, err := c.readResponse()
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if errMsg, ok := attrs["error"]; ok {
		return "", fmt.Errorf("server error: %s", errMsg)
	}

	return attrs["mode"], nil
}

// List retrieves the ranked visible entries for the current query
func (c *Client) List() ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("list", nil); err != nil {
		return nil, err
	}

	attrs, body, err := c.readResponse()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if errMsg, ok := attrs["error"]; ok {
		return nil, fmt.Errorf("server error: %s", errMsg)
	}

	var rows []Row
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 3 {
			continue
		}
		score, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		rows = append(rows, Row{
			ID:    parts[0],
			Score: score,
			Name:  parts[2],
		})
	}

	return rows, nil
}

// Activate confirms the current input: the top-ranked entry in search mode,
// the raw command line in command mode.
func (c *Client) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("activate", nil); err != nil {
		return err
	}

	attrs, _, err := c.readResponse()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if errMsg, ok := attrs["error"]; ok {
		return fmt.Errorf("server error: %s", errMsg)
	}

	return nil
}

// Select launches the entry with the given id
func (c *Client) Select(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("select", []string{id}); err != nil {
		return err
	}

	attrs, _, err := c.readResponse()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if errMsg, ok := attrs["error"]; ok {
		return fmt.Errorf("server error: %s", errMsg)
	}

	return nil
}

// Rescan asks the daemon to rebuild its entry set
func (c *Client) Rescan(paths []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("rescan", paths); err != nil {
		return 0, err
	}

	attrs, _, err := c.readResponse()
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if errMsg, ok := attrs["error"]; ok {
		return 0, fmt.Errorf("server error: %s", errMsg)
	}

	indexed, _ := strconv.Atoi(attrs["indexed"])
	return indexed, nil
}

// ReadResponse reads one response and returns attrs plus raw body,
// for the CLI's raw mode.
func (c *Client) ReadResponse() (map[string]string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readResponse()
}

// readResponse reads a TXT01 header, the attrs block up to its blank line,
// then a body of exactly list-len lines when that attr is present.
func (c *Client) readResponse() (map[string]string, string, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(c.reader, header); err != nil {
		return nil, "", fmt.Errorf("failed to read response header: %w", err)
	}

	attrs := make(map[string]string)
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, "", fmt.Errorf("read error: %w", err)
		}
		if line == "\n" {
			break
		}
		parts := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(parts) == 2 {
			attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	body := strings.Builder{}
	if listLen, err := strconv.Atoi(attrs["list-len"]); err == nil {
		for i := 0; i < listLen; i++ {
			line, err := c.reader.ReadString('\n')
			if err != nil {
				return nil, "", fmt.Errorf("read error: %w", err)
			}
			body.WriteString(line)
		}
	}

	return attrs, body.String(), nil
}
