// Command storefront is a terminal client for the Campus Market storefront:
// it keeps the session and cart in local storage between runs, places
// orders and drives payments.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const closeTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, cleanup := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	cleanup(closeCtx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
