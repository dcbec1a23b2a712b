// whm2bunny-hook relays a single WHM/cPanel lifecycle event to the whm2bunny
// receiver as a signed webhook notification. It is registered in WHM under
// Script Hooks and invoked once per event with the event type as the first
// argument and the event data as JSON in the second argument or on stdin.
//
// Exit codes: 0 delivered, 1 failure, 130 interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/hook"
	"github.com/mordenhost/whm2bunny/pkg/observability"
)

func main() {
	logger, _ := observability.NewHookLogger(os.Getenv("WHM2BUNNY_DEBUG") == "true")

	settings := config.ResolveHookSettings(nil, logger)
	if settings.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "Interrupted")
		os.Exit(130)
	}()

	dispatcher := hook.NewDispatcher(settings, logger, os.Stdin)
	os.Exit(dispatcher.Run(context.Background(), os.Args[1:]))
}
