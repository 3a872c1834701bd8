// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/muxclient/main.go
// Summary: Raw-mode terminal smoke-test client for the legacy per-session
// protocol (spec.md §6), used to drive a muxd server from a real terminal.

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "muxclient:", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: muxclient attach <ws-url>")
	}
	if os.Args[1] != "attach" || len(os.Args) < 3 {
		return fmt.Errorf("usage: muxclient attach <ws-url>")
	}
	url := os.Args[2]

	cols, rows := 80, 24
	if isatty.IsTerminal(os.Stdout.Fd()) {
		if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			cols, rows = w, h
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, _, _, err := ws.Dial(ctx, fmt.Sprintf("%s?cols=%d&rows=%d", url, cols, rows))
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	var restore func() error
	if isatty.IsTerminal(os.Stdin.Fd()) {
		fd := int(os.Stdin.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		restore = func() error { return term.Restore(fd, state) }
		defer restore()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pumpStdinToSocket(ctx, conn) })
	g.Go(func() error { return pumpSocketToStdout(conn) })

	err = g.Wait()
	if err == io.EOF {
		return nil
	}
	return err
}

func pumpStdinToSocket(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if werr := wsutil.WriteClientBinary(conn, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}

func pumpSocketToStdout(conn net.Conn) error {
	for {
		data, op, err := wsutil.ReadServerData(conn)
		if err != nil {
			return err
		}
		if op == ws.OpBinary {
			if _, werr := os.Stdout.Write(data); werr != nil {
				return werr
			}
		}
	}
}
