// mini-https-server serves the files below a document root over HTTPS.
//
// Usage:
//
//	# Serve ./public_html on :5443 with cert/certificate.pem and cert/key.pem
//	mini-https-server
//
//	# Bind :443, write ./pidfile and ./log, then drop privileges
//	mini-https-server --daemon
//
//	# Use a configuration file
//	mini-https-server --config /etc/mini-https-server.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
