// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: ptyspawn/spawner.go
// Summary: pty process lifecycle used by the session table (spec.md §4.E create/resize/destroy).

package ptyspawn

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// killTimeout is how long Close waits for the shell to exit after SIGTERM
// before escalating to SIGKILL.
const killTimeout = 5 * time.Second

// Spawner wraps one pty-backed shell process. It is the session table's
// capability surface onto the operating system: a session table never calls
// os/exec or creack/pty directly.
type Spawner struct {
	mu     sync.Mutex
	file   *os.File
	cmd    *exec.Cmd
	closed bool
}

// Config selects the command, working directory, and environment of a
// spawned shell, plus its initial terminal size.
type Config struct {
	Shell string // defaults to $SHELL, then "/bin/sh"
	Dir   string
	Env   []string
	Cols  int
	Rows  int
}

func (c Config) shellPath() string {
	if c.Shell != "" {
		return c.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Spawn starts a new shell attached to a pty sized cols x rows.
func Spawn(cfg Config) (*Spawner, error) {
	cmd := exec.Command(cfg.shellPath())
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	cmd.SysProcAttr = &syscall.SysProcAttr{}

	file, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(cfg.Rows),
		Cols: uint16(cfg.Cols),
	})
	if err != nil {
		return nil, err
	}

	return &Spawner{file: file, cmd: cmd}, nil
}

// Resize updates the pty's terminal size. It is a no-op once the spawner is
// closed.
func (s *Spawner) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return pty.Setsize(s.file, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Write sends keystroke bytes to the pty.
func (s *Spawner) Write(p []byte) (int, error) {
	s.mu.Lock()
	file, closed := s.file, s.closed
	s.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return file.Write(p)
}

// Read blocks for pty output. It does not hold the spawner's mutex across
// the blocking read, so Close can proceed concurrently.
func (s *Spawner) Read(p []byte) (int, error) {
	s.mu.Lock()
	file, closed := s.file, s.closed
	s.mu.Unlock()
	if closed {
		return 0, io.EOF
	}
	return file.Read(p)
}

// Close terminates the shell and releases the pty file. Safe to call more
// than once.
func (s *Spawner) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	file, cmd := s.file, s.cmd
	s.file, s.cmd = nil, nil
	s.mu.Unlock()

	if file != nil {
		_ = file.Close()
	}
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(killTimeout):
		_ = cmd.Process.Kill()
		<-done
	}
	return nil
}
