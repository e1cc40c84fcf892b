package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	internalrepo "MandiCast/internal/repository"
	"MandiCast/internal/services/lstm"
	"MandiCast/internal/services/series"
	"MandiCast/internal/usecase"
	"MandiCast/pkg/config"
	applogger "MandiCast/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	csvPath := flag.String("csv", "", "dataset CSV (overrides dataset.csv_path)")
	outDir := flag.String("out", "", "model output dir (overrides models.dir)")
	epochs := flag.Int("epochs", lstm.DefaultEpochs, "training epochs")
	batch := flag.Int("batch", lstm.DefaultBatchSize, "mini-batch size")
	district := flag.String("district", "", "train only this district")
	market := flag.String("market", "", "train only this market")
	crop := flag.String("crop", "", "train only this crop")
	seed := flag.Uint64("seed", 42, "weight init and shuffle seed")
	parallel := flag.Int("parallel", 1, "pairs trained concurrently")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *csvPath != "" {
		cfg.Dataset.CSVPath = *csvPath
	}
	if *outDir != "" {
		cfg.Models.Dir = *outDir
	}

	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: "console",
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	catalog, err := internalrepo.LoadCatalog(cfg.Dataset.CatalogPath)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	table, err := internalrepo.LoadDataset(cfg.Dataset.CSVPath, l)
	if err != nil {
		log.Fatalf("dataset: %v", err)
	}

	model := lstm.DefaultConfig()
	model.Lookback = cfg.Models.Lookback
	model.Seed = *seed

	store := internalrepo.NewFileModelStore(cfg.Models.Dir, nil)
	uc := usecase.NewTrainUseCase(catalog, series.NewExtractor(table), store, l, usecase.TrainConfig{
		Model:       model,
		Epochs:      *epochs,
		BatchSize:   *batch,
		Parallelism: *parallel,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sum, err := uc.Run(ctx, usecase.TrainFilter{District: *district, Market: *market, Crop: *crop})
	if err != nil {
		log.Fatalf("training: %v", err)
	}
	for _, o := range sum.Outcomes {
		if o.Err != nil {
			l.Error("pair failed", applogger.String("key", o.Key), applogger.Error(o.Err))
		}
	}
	l.Info("training finished",
		applogger.Int("trained", sum.Trained),
		applogger.Int("skipped", sum.Skipped),
		applogger.Int("failed", sum.Failed),
		applogger.String("dir", cfg.Models.Dir))
	if sum.Failed > 0 {
		os.Exit(1)
	}
}
