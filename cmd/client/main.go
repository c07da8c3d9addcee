package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"spell-and-sprint/client/internal/app"
	"spell-and-sprint/client/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigFile, "path to the client configuration file")
	connect := flag.String("connect", "", "join the room server at host:port")
	host := flag.String("host", "", "host a room: launch the server and bind it to host:port")
	historyLimit := flag.Int("history", 0, "print the most recent N sessions and exit")
	flag.Parse()

	if *historyLimit > 0 {
		if err := app.PrintHistory(*configPath, *historyLimit); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Options{
		ConfigPath: *configPath,
		Connect:    *connect,
		Host:       *host,
	}); err != nil {
		log.Fatalf("%v", err)
	}
}
