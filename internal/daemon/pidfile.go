// Package daemon tracks a background API server through a PID file that
// also records the address it listens on.
package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Record is the content of a PID file.
type Record struct {
	PID  int
	Addr string
}

// PIDFile manages a PID file for daemon process tracking.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process and its listen address.
func (p *PIDFile) Write(addr string) error {
	return p.WriteRecord(Record{PID: os.Getpid(), Addr: addr})
}

// WriteRecord writes r to the file as "<pid> <addr>".
func (p *PIDFile) WriteRecord(r Record) error {
	line := strconv.Itoa(r.PID)
	if r.Addr != "" {
		line += " " + r.Addr
	}
	return os.WriteFile(p.Path, []byte(line+"\n"), 0o644)
}

// Read parses the file. Files holding only a PID are accepted.
func (p *PIDFile) Read() (Record, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Record{}, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return Record{}, fmt.Errorf("invalid PID file content: empty")
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return Record{}, fmt.Errorf("invalid PID file content: %w", err)
	}
	r := Record{PID: pid}
	if len(fields) > 1 {
		r.Addr = fields[1]
	}
	return r, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}
