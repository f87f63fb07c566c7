package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexandersjoberg/sidekick/pkg/config"
	"github.com/alexandersjoberg/sidekick/pkg/dataset"
	"github.com/alexandersjoberg/sidekick/pkg/logger"
	"github.com/alexandersjoberg/sidekick/pkg/metric"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const usageText = `Usage:
  sidekick upload [-name <name>] [-description <text>] [-workers <n>] <file>...
  sidekick predict [-input <items.jsonl>] [-output <predictions.jsonl>]
  sidekick schema

Connection settings are read from the environment:
  SIDEKICK_DATASET_URL, SIDEKICK_DATASET_TOKEN        for upload
  SIDEKICK_DEPLOYMENT_URL, SIDEKICK_DEPLOYMENT_TOKEN  for predict and schema
`

func main() {
	config.InitEnv()
	logger.Init()
	metric.Init()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "upload":
		err = runUpload(ctx, os.Args[2:])
	case "predict":
		err = runPredict(ctx, os.Args[2:])
	case "schema":
		err = runSchema(ctx, os.Stdout)
	case "help", "-h", "--help":
		fmt.Print(usageText)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msgf("%s failed", os.Args[1])
		os.Exit(1)
	}
}

func runUpload(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("upload", flag.ExitOnError)
	name := flags.String("name", "", "dataset name")
	description := flags.String("description", "", "dataset description")
	workers := flags.Int("workers", 0, "concurrent file uploads, overrides SIDEKICK_DATASET_MAX_WORKERS")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return dataset.ErrNoFiles
	}
	if *workers > 0 {
		viper.Set(dataset.Prefix+dataset.MaxWorkers, *workers)
	}

	client, err := dataset.NewFromEnv()
	if err != nil {
		return err
	}
	session, err := client.Upload(ctx, flags.Args(), *name, *description)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %d files to dataset wrapper %s\n", len(session.Jobs), session.WrapperID)
	return nil
}
