package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lumen-wm/lumen-queryd/internal/apps"
	"github.com/lumen-wm/lumen-queryd/internal/config"
	"github.com/lumen-wm/lumen-queryd/internal/queryctl"
	"github.com/lumen-wm/lumen-queryd/parser"
)

// Server handles Unix socket connections and translates protocol commands
// into query-controller events. Dispatch is serialized: the controller is
// single-threaded by contract.
type Server struct {
	listener net.Listener
	ctl      *queryctl.Controller
	running  bool
	mu       sync.RWMutex

	// dispatchMu serializes all controller access across connections
	dispatchMu sync.Mutex
}

// NewServer creates a new server instance
func NewServer(ctl *queryctl.Controller) (*Server, error) {
	cfg := config.Get()
	socketPath := cfg.UnixSocket()

	// Create directory if needed
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return nil, err
	}

	// Remove existing socket if it exists
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener: listener,
		ctl:      ctl,
	}, nil
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return nil
			}
			continue
		}

		go s.handleConnection(conn)
	}
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.listener.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	log.Printf("[DEBUG] New connection accepted")

	p, err := parser.NewParser(conn)
	if err != nil {
		log.Printf("[ERROR] Failed to create parser: %v", err)
		s.writeError(conn, "parser", "invalid header", err.Error())
		return
	}

	for {
		cmd, err := p.ParseCommand()
		if err != nil {
			var syntaxErr *parser.SyntaxError
			if errors.As(err, &syntaxErr) {
				// Bad input on a healthy connection, report and keep reading
				log.Printf("[ERROR] Parse error: %v", err)
				s.writeError(conn, "parser", "parse error", err.Error())
				continue
			}
			if err != io.EOF {
				log.Printf("[ERROR] Read error: %v", err)
				break
			}
			log.Printf("[DEBUG] Connection closed by client")
			break
		}

		log.Printf("[DEBUG] Executing command: %s with %d args", cmd.Name, len(cmd.Args))
		s.executeCommand(conn, cmd)
	}
}

func (s *Server) executeCommand(conn net.Conn, cmd *parser.Command) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	switch cmd.Name {
	case "query":
		s.handleQuery(conn, cmd)
	case "list":
		s.handleList(conn)
	case "activate":
		s.handleActivate(conn)
	case "select":
		s.handleSelect(conn, cmd)
	case "rescan":
		s.handleRescan(conn, cmd)
	default:
		s.writeError(conn, cmd.Name, "unknown command", "Command not recognized")
	}
}

func (s *Server) handleQuery(conn net.Conn, cmd *parser.Command) {
	var text string
	if len(cmd.Args) > 0 {
		if cmd.Args[0].Type != parser.TypeString {
			s.writeError(conn, "query", "invalid argument", "query takes a string argument")
			return
		}
		text = cmd.Args[0].Str
	}

	s.ctl.Dispatch(queryctl.TextChanged{Text: text})

	cmdMode, cmdLine := s.ctl.CommandMode()
	if cmdMode {
		log.Printf("[DEBUG] Query %q enters command mode: %q", text, cmdLine)
		attrs := fmt.Sprintf("cmd: query\nstatus: 0\nmode: command\ncommand-line: %s\n\n", cmdLine)
		s.writeResponse(conn, attrs)
		return
	}

	visible := len(s.ctl.Visible(0))
	log.Printf("[DEBUG] Query %q matches %d of %d entries", text, visible, s.ctl.Count())
	attrs := fmt.Sprintf("cmd: query\nstatus: 0\nmode: search\nvisible: %d\n\n", visible)
	s.writeResponse(conn, attrs)
}

func (s *Server) handleList(conn net.Conn) {
	cfg := config.Get()
	rows := s.ctl.Visible(cfg.ListLimit())

	log.Printf("[DEBUG] Listing %d visible entries", len(rows))

	attrs := fmt.Sprintf("list-len: %d\n\n", len(rows))
	body := strings.Builder{}
	for _, row := range rows {
		body.WriteString(fmt.Sprintf("%s %d %s\n", row.ID, row.Score, row.Name))
	}

	s.writeResponse(conn, attrs+body.String())
}

func (s *Server) handleActivate(conn net.Conn) {
	if err := s.ctl.Dispatch(queryctl.Activated{}); err != nil {
		log.Printf("[ERROR] Activation failed: %v", err)
		s.writeError(conn, "activate", "activation failed", err.Error())
		return
	}

	attrs := "cmd: activate\nstatus: 0\n\n"
	s.writeResponse(conn, attrs)
}

func (s *Server) handleSelect(conn net.Conn, cmd *parser.Command) {
	if len(cmd.Args) == 0 || cmd.Args[0].Type != parser.TypeString {
		log.Printf("[ERROR] Select command missing id parameter")
		s.writeError(conn, "select", "missing id", "select command requires an id parameter")
		return
	}

	id := cmd.Args[0].Str
	if err := s.ctl.Dispatch(queryctl.RowSelected{ID: id}); err != nil {
		log.Printf("[ERROR] Select failed for %s: %v", id, err)
		s.writeError(conn, "select", "launch failed", err.Error())
		return
	}

	attrs := fmt.Sprintf("cmd: select\nid: %s\nstatus: 0\n\n", id)
	s.writeResponse(conn, attrs)
}

func (s *Server) handleRescan(conn net.Conn, cmd *parser.Command) {
	cfg := config.Get()

	var appDirs []string
	for _, arg := range cmd.Args {
		if arg.Type == parser.TypeString {
			appDirs = append(appDirs, arg.Str)
		}
	}
	if len(appDirs) == 0 {
		appDirs = cfg.AppDirs()
	}

	var binDirs []string
	if cfg.ScanPathBins() {
		binDirs = cfg.BinDirs()
	}

	entries := apps.Discover(appDirs, binDirs)
	s.ctl.Reset(entries)

	log.Printf("[DEBUG] Rescan indexed %d entries", len(entries))
	attrs := fmt.Sprintf("cmd: rescan\nstatus: 0\nindexed: %d\n\n", len(entries))
	s.writeResponse(conn, attrs)
}

// writeResponse writes a response with TXT01 header
func (s *Server) writeResponse(conn net.Conn, response string) {
	header := []byte("TXT01")
	n, err := conn.Write(header)
	if err != nil {
		log.Printf("[ERROR] Failed to write header: %v", err)
		return
	}
	if n != len(header) {
		log.Printf("[ERROR] Partial header write: %d/%d bytes", n, len(header))
		return
	}

	if _, err = conn.Write([]byte(response)); err != nil {
		log.Printf("[ERROR] Failed to write response body: %v", err)
	}
}

func (s *Server) writeError(conn net.Conn, cmd, errType, desc string) {
	log.Printf("[ERROR] Writing error response: cmd=%s, type=%s, desc=%s", cmd, errType, desc)
	errorMsg := fmt.Sprintf("error-cmd: %s\nerror: %s\ndesc: %s\n\n", cmd, errType, desc)
	s.writeResponse(conn, errorMsg)
}
