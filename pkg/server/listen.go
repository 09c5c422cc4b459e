package server

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strings"
)

// Listen opens the listener named by addr: "unix:///path/to.sock",
// "tcp://host:port", or a bare "host:port".
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig

	switch {
	case strings.HasPrefix(addr, "unix://"):
		path := strings.TrimPrefix(addr, "unix://")
		// A previous run may have left the socket file behind.
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		slog.Debug("Listening on unix socket", "path", path)
		return lc.Listen(ctx, "unix", path)

	case strings.HasPrefix(addr, "tcp://"):
		addr = strings.TrimPrefix(addr, "tcp://")
		fallthrough
	default:
		slog.Debug("Listening on tcp address", "addr", addr)
		return lc.Listen(ctx, "tcp", addr)
	}
}
