package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cbodonnell/cardstage/pkg/bot"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/network"
	"github.com/cbodonnell/cardstage/pkg/version"
	"golang.org/x/sync/errgroup"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "Websocket url of the server")
	count := flag.Int("bots", 2, "Number of bots to connect")
	authToken := flag.String("auth-token", os.Getenv("CARDSTAGE_BOT_AUTH_TOKEN"), "Bearer token sent when connecting")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Starting %d bots version %s against %s", *count, version.Get(), *url)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < *count; i++ {
		botLogger := logger.With("bot", i)
		g.Go(func() error {
			client, err := network.Dial(ctx, *url, network.DialOptions{AuthToken: *authToken})
			if err != nil {
				return err
			}
			defer client.Close()

			reason, err := bot.New(client, botLogger).Run(ctx)
			if err != nil {
				return err
			}
			botLogger.Info("Finished with %s", reason)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Bots stopped: %v", err)
		os.Exit(1)
	}
}
