package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	lambdaadapter "github.com/melih/lighthouse-router/internal/adapters/lambda"
	"github.com/melih/lighthouse-router/internal/bootstrap"
	"github.com/melih/lighthouse-router/internal/config"
	"github.com/melih/lighthouse-router/internal/logger"
)

func main() {
	cfg, err := config.Load(config.NewFlagSet(), os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.InitLogger(cfg.LoggerConfig())
	for _, k := range cfg.Container.MissingEnv {
		log.Warn().Str("key", k).Msg("container variable is not set, forwarding it empty")
	}

	def := cfg.Definition()
	platform, err := bootstrap.NewPlatform(def, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize docker adapter")
	}

	// The sleeper runs between invocations while the execution environment
	// is warm; SIGTERM marks the environment's shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	sleeperDone := bootstrap.StartIdleSleeper(ctx, platform, log)
	shutdown := func() {
		cancel()
		<-sleeperDone
		if err := platform.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close docker client")
		}
	}

	fwd := bootstrap.NewForwarder(platform, def, log)
	handler := lambdaadapter.NewHandler(fwd, logger.ForComponent(log, "lambda"))
	lambda.StartWithOptions(handler.Handle,
		lambda.WithContext(ctx),
		lambda.WithEnableSIGTERM(shutdown))
}
