// Command worker is a stateless rollout worker: it consumes rollout jobs
// from the queue, runs them against a local copy of the sequence model and
// evaluation pipeline, and publishes scored results back to the engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/domain/filter"
	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/internal/domain/reward"
	"github.com/turtacn/MolGenesis/internal/infrastructure/database/redis"
	"github.com/turtacn/MolGenesis/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/internal/intelligence/seqmodel"
	"github.com/turtacn/MolGenesis/internal/search"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path (default: MOLGEN_* environment variables)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	workerID := uuid.NewString()
	log = log.With(logging.String("worker_id", workerID))

	vocab, err := search.LoadVocabulary(cfg.Model.VocabPath)
	if err != nil {
		return err
	}
	model, err := seqmodel.NewONNXModel(seqmodel.ONNXOptions{
		Path:      cfg.Model.Path,
		VocabSize: vocab.Size(),
		MaxLength: cfg.Model.MaxLength,
		Sessions:  cfg.Model.Sessions,
	}, log.Named("model"))
	if err != nil {
		return err
	}
	defer model.Close()

	// Workers share the Redis duplicate store when it is enabled so the
	// whole fleet agrees on which canonical forms were already emitted.
	var seen filter.SeenStore
	if cfg.Dedup.Enabled {
		rc, err := redis.NewClient(cfg.Dedup, log.Named("dedup"))
		if err != nil {
			return err
		}
		defer rc.Close()
		seen = redis.NewSeenStore(rc, cfg.Run.ID, cfg.Dedup.TTL)
	} else {
		seen = filter.NewMemorySeenStore()
	}

	filters, err := filter.Build(cfg.Filters, filter.Deps{Seen: seen, Logger: log.Named("filter")})
	if err != nil {
		return err
	}
	calc, err := reward.New(cfg.Reward)
	if err != nil {
		return err
	}
	pipeline := search.NewPipeline(
		molecule.NewDecoder(),
		cfg.Filters.Neutralization,
		filters,
		calc,
		cfg.Reward.IncludeFilterResult,
		log.Named("evaluate"),
	)

	jobs, err := kafka.NewConsumer(cfg.Queue.Brokers, cfg.Queue.JobsTopic, cfg.Queue.GroupID, log.Named("queue"))
	if err != nil {
		return err
	}
	defer jobs.Close()
	results, err := kafka.NewProducer(cfg.Queue.Brokers, cfg.Queue.ResultsTopic, log.Named("queue"))
	if err != nil {
		return err
	}
	defer results.Close()

	parallel := 1
	if cfg.Search.LeafParallel {
		parallel = cfg.Search.LeafParallelNum
	}
	worker := kafka.NewRolloutWorker(workerID, jobs, results, vocab, model, pipeline, parallel, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return worker.Run(ctx)
}
