package terminal

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"

	"habitat/internal/config"
)

// Start listens on cfg.Addr and serves the terminal until ctx is done. It
// returns once the listener is bound; the returned wait function blocks until
// every connection has closed.
func Start(ctx context.Context, cfg config.TerminalConfig, d *Dispatcher, logger *slog.Logger) (wait func(), err error) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("terminal listener disabled")
		}
		return func() {}, nil
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("terminal listener enabled", "addr", ln.Addr().String())
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		Serve(ctx, ln, d, logger)
	}()
	return func() { <-done }, nil
}

// Serve accepts connections on ln until ctx is done. Each line read is one
// command; the response is written followed by a blank line.
func Serve(ctx context.Context, ln net.Listener, d *Dispatcher, logger *slog.Logger) {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			if logger != nil {
				logger.Warn("terminal accept error", "err", err)
			}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(ctx, conn, d, logger)
		}()
	}
}

func handleConn(ctx context.Context, conn net.Conn, d *Dispatcher, logger *slog.Logger) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	w := bufio.NewWriter(conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		resp := d.Execute(ctx, line)
		if _, err := w.WriteString(resp + "\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && logger != nil {
		logger.Warn("terminal connection error", "remote", conn.RemoteAddr().String(), "err", err)
	}
}
