package system

import (
	"fmt"
	"net"

	"github.com/julianstephens/authip/internal/cli"
	"github.com/julianstephens/authip/internal/lockfile"
	"github.com/julianstephens/authip/internal/logger"
	"github.com/julianstephens/authip/internal/web"
)

type ServeCmd struct {
	Addr string `help:"Listen address." default:"127.0.0.1:8080" env:"AUTHIP_ADDR"`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	srv, err := web.New(ctx.Service, web.Config{
		APIURL:       ctx.Client.BaseURL(),
		PollInterval: ctx.PollInterval,
		Now:          ctx.Now,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.Addr, err)
	}
	port := 0
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	lock, err := lockfile.Acquire(ctx.ConfigDir, port)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release server lock", "error", err)
		}
	}()

	ctx.Printf("✓ Admin interface at http://%s\n", ln.Addr())
	ctx.Println("  Press Ctrl+C to stop")
	return srv.Serve(ctx.Background(), ln)
}
