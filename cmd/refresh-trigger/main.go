// Command refresh-trigger publishes one refresh request so a running
// server re-reads the spreadsheet.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"spendboard/internal/amqp"
	"spendboard/internal/cli"
	"spendboard/internal/config"
	"spendboard/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	requestedBy := flag.String("by", "refresh-trigger", "name recorded as the requester")
	reason := flag.String("reason", "", "free-form reason stored with the request")
	timeout := flag.Duration("timeout", 10*time.Second, "publish timeout")
	flag.Parse()

	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to connect to broker", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := client.PublishRefreshRequest(ctx, *requestedBy, *reason); err != nil {
		logger.Error("Failed to publish refresh request", log.FieldError, err)
		client.Close()
		os.Exit(1)
	}
}
