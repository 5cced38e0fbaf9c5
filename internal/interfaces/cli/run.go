package cli

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/domain/filter"
	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/internal/domain/reward"
	"github.com/turtacn/MolGenesis/internal/infrastructure/database/postgres"
	"github.com/turtacn/MolGenesis/internal/infrastructure/database/redis"
	"github.com/turtacn/MolGenesis/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MolGenesis/internal/infrastructure/storage/minio"
	"github.com/turtacn/MolGenesis/internal/intelligence/seqmodel"
	"github.com/turtacn/MolGenesis/internal/search"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a molecule generation search",
		Long:  "Run loads the sequence model and vocabulary, assembles the evaluation\npipeline (decoder, filters, reward calculator) and executes the tree search\nuntil the configured budget is exhausted.  SIGINT and SIGTERM stop the\nsearch cleanly, writing a final checkpoint when checkpointing is enabled.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSearch(ctx, cfg, log)
		},
	}
}

// newResumeCommand restarts a checkpointed search.  It is equivalent to
// setting checkpoint.restart in the configuration.
func newResumeCommand(opts *rootOptions) *cobra.Command {
	var checkpointFile string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a search from its checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			cfg.Checkpoint.Restart = true
			if checkpointFile != "" {
				cfg.Checkpoint.File = checkpointFile
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSearch(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&checkpointFile, "checkpoint", "", "checkpoint file to resume from (default: checkpoint.file from config)")
	return cmd
}

// runSearch wires every collaborator from the configuration and drives the
// engine to completion.
func runSearch(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	runID := cfg.Run.ID
	log = log.With(logging.String("run_id", runID))
	log.Info("Configuration resolved",
		logging.String("threshold_type", cfg.Search.ThresholdType),
		logging.Float64("hours", cfg.Search.Hours),
		logging.Int("generation_num", cfg.Search.GenerationNum),
		logging.String("policy", cfg.Search.Policy),
		logging.String("reward", cfg.Reward.Name),
		logging.Any("filters", cfg.Filters.Use),
		logging.String("model", cfg.Model.Path),
		logging.Bool("queue_parallel", cfg.Search.QueueParallel),
		logging.Bool("checkpoint_save", cfg.Checkpoint.Save),
	)

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

	// Duplicate tracking: Redis when configured, otherwise an in-memory set
	// scoped to this process.
	var seen filter.SeenStore
	if cfg.Dedup.Enabled {
		rc, err := redis.NewClient(cfg.Dedup, log.Named("dedup"))
		if err != nil {
			return err
		}
		defer rc.Close()
		seen = redis.NewSeenStore(rc, runID, cfg.Dedup.TTL)
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

	pcg := rand.NewPCG(randomSeed(), randomSeed())
	rng := rand.New(pcg)

	sim, simCleanup, err := buildSimulator(cfg, runID, model, pipeline, rng, log)
	if err != nil {
		return err
	}
	defer simCleanup()

	recorder, archive, recCleanup, err := buildRecorders(ctx, cfg, runID, log)
	if err != nil {
		return err
	}
	defer recCleanup()

	ckptMgr, ckptCleanup, err := buildCheckpoints(cfg, runID, log)
	if err != nil {
		return err
	}
	defer ckptCleanup()

	var observer search.Observer = search.NopObserver{}
	if cfg.Metrics.Enabled {
		metrics := prometheus.NewSearchMetrics(runID)
		observer = prometheus.NewObserver(metrics)
		srv := prometheus.NewServer(cfg.Metrics.Addr, metrics, log.Named("metrics"))
		srv.Start()
		defer srv.Shutdown(context.Background())
	}

	engine, err := search.NewEngine(search.EngineParams{
		Config:             cfg.Search,
		RunID:              runID,
		Vocab:              vocab,
		Model:              model,
		Simulator:          sim,
		PCG:                pcg,
		Checkpoints:        ckptMgr,
		SaveCheckpoints:    cfg.Checkpoint.Save,
		CheckpointInterval: cfg.Checkpoint.Interval,
		Recorder:           recorder,
		Observer:           observer,
		Logger:             log.Named("search"),
	})
	if err != nil {
		return err
	}

	if cfg.Checkpoint.Restart {
		snap, err := ckptMgr.Load()
		if err != nil {
			return err
		}
		if err := engine.Resume(snap); err != nil {
			return err
		}
	}

	if err := engine.Run(ctx); err != nil {
		return err
	}
	logArchiveSummary(archive, runID, log)
	return nil
}

// logArchiveSummary reports the archived molecule count and the run's top
// candidates after a completed search.  Summary failures are logged, never
// fatal: the search itself already finished.
func logArchiveSummary(archive *postgres.ArchiveRepository, runID string, log logging.Logger) {
	if archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := archive.CountByRun(ctx, runID)
	if err != nil {
		log.Error("Failed to count archived molecules", logging.Err(err))
		return
	}
	log.Info("Archive summary", logging.Int64("molecules", count))

	best, err := archive.BestByRun(ctx, runID, 5)
	if err != nil {
		log.Error("Failed to query run leaderboard", logging.Err(err))
		return
	}
	for i, row := range best {
		log.Info("Top candidate",
			logging.Int("rank", i+1),
			logging.String("canonical", row.Canonical),
			logging.Float64("reward", row.Reward),
		)
	}
}

// buildSimulator selects between in-process rollouts and queue dispatch.
func buildSimulator(
	cfg *config.Config,
	runID string,
	model seqmodel.Model,
	pipeline *search.Pipeline,
	rng *rand.Rand,
	log logging.Logger,
) (search.Simulator, func(), error) {
	if cfg.Search.QueueParallel {
		jobs, err := kafka.NewProducer(cfg.Queue.Brokers, cfg.Queue.JobsTopic, log.Named("queue"))
		if err != nil {
			return nil, nil, err
		}
		results, err := kafka.NewConsumer(cfg.Queue.Brokers, cfg.Queue.ResultsTopic, cfg.Queue.GroupID+"-engine", log.Named("queue"))
		if err != nil {
			jobs.Close()
			return nil, nil, err
		}
		sim := kafka.NewQueueSimulator(runID, jobs, results, rng, 0, log.Named("queue"))
		cleanup := func() {
			jobs.Close()
			results.Close()
		}
		return sim, cleanup, nil
	}

	parallel := 1
	if cfg.Search.LeafParallel {
		parallel = cfg.Search.LeafParallelNum
	}
	sim := search.NewLocalSimulator(model, pipeline, rng, parallel, log.Named("rollout"))
	return sim, func() {}, nil
}

// buildRecorders assembles the molecule ledger: always a per-run CSV file,
// plus the PostgreSQL archive when enabled.  The archive repository is also
// returned separately for the end-of-run summary; it is nil when disabled.
func buildRecorders(ctx context.Context, cfg *config.Config, runID string, log logging.Logger) (search.Recorder, *postgres.ArchiveRepository, func(), error) {
	if err := os.MkdirAll(cfg.Run.OutputDir, 0o755); err != nil {
		return nil, nil, nil, err
	}
	csvPath := filepath.Join(cfg.Run.OutputDir, runID+".csv")
	csvRec, err := search.NewCSVRecorder(csvPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("Molecule ledger opened", logging.String("path", csvPath))

	if !cfg.Archive.Enabled {
		return csvRec, nil, func() { csvRec.Close() }, nil
	}

	pool, err := postgres.Connect(ctx, cfg.Archive, log.Named("archive"))
	if err != nil {
		csvRec.Close()
		return nil, nil, nil, err
	}
	archive := postgres.NewArchiveRepository(pool, log.Named("archive"))
	cleanup := func() {
		csvRec.Close()
		pool.Close()
	}
	return search.NewMultiRecorder(csvRec, archive), archive, cleanup, nil
}

// buildCheckpoints creates the checkpoint manager, attaching the object
// storage mirror when configured.
func buildCheckpoints(cfg *config.Config, runID string, log logging.Logger) (*search.CheckpointManager, func(), error) {
	cleanup := func() {}
	if !cfg.Checkpoint.Save && !cfg.Checkpoint.Restart {
		return search.NewCheckpointManager(cfg.Checkpoint.File, nil, log.Named("checkpoint")), cleanup, nil
	}

	var mirror search.Mirror
	if cfg.Checkpoint.Mirror {
		mc, err := minio.NewClient(cfg.Storage, log.Named("storage"))
		if err != nil {
			return nil, nil, err
		}
		mirror = minio.NewCheckpointMirror(mc, runID, log.Named("storage"))
		cleanup = func() { mc.Close() }
	}
	return search.NewCheckpointManager(cfg.Checkpoint.File, mirror, log.Named("checkpoint")), cleanup, nil
}

// randomSeed draws one seed word from the OS entropy source.
func randomSeed() uint64 {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(b[:])
}
