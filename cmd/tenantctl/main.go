package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/GestIAdev/Dentiagest-sub007/internal/tenantctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := tenantctl.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
