package app

import (
	"context"
	"errors"
	"log"
	"sync"

	"cvalign/internal/config"
	"cvalign/internal/database"
	"cvalign/internal/database/migration"
	"cvalign/internal/database/seeder"
	dbpostgres "cvalign/internal/database/postgres"
	"cvalign/internal/extraction"
	"cvalign/internal/infrastructure/cache"
	"cvalign/internal/infrastructure/knowledgegraph"
	"cvalign/internal/infrastructure/storage"
	"cvalign/internal/jobfeed"
	"cvalign/internal/kgrpc"
	"cvalign/internal/pipeline"
	"cvalign/internal/pkg/jwt"
	"cvalign/internal/queue"
	"cvalign/internal/repository"
	"cvalign/internal/resume"
	"cvalign/internal/usecase"
	"cvalign/internal/ws"
	"cvalign/migrations"
)

// Container owns every long-lived dependency of the API process.
type Container struct {
	Config config.Config
	Logger *log.Logger

	DB        database.DB
	Skills    repository.SkillRepository
	Cache     *cache.Redis
	Transport *kgrpc.ProcessTransport
	Graph     *knowledgegraph.Gateway
	Queue     queue.Queue
	GraphSync *pipeline.GraphSyncPipeline
	Hub       *ws.Hub
	JWT       jwt.Service

	SkillUC      *usecase.Skill
	EnrichmentUC *usecase.Enrichment

	wg sync.WaitGroup
}

func NewContainer(ctx context.Context, cfg config.Config, logger *log.Logger) (*Container, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := &Container{Config: cfg, Logger: logger}

	if cfg.Database.Enabled() {
		db, err := dbpostgres.Connect(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		c.DB = db
		if err := (migration.Runner{Dir: cfg.Migrations.Dir, Source: migrations.FS, Logger: logger}).Run(ctx, db.SQLDB()); err != nil {
			_ = db.Close()
			return nil, err
		}
		if len(cfg.Seed.Skills) > 0 {
			runner := seeder.Runner{Seeders: []seeder.Seeder{seeder.ManualSkillsSeeder{Names: cfg.Seed.Skills}}, Logger: logger}
			if err := runner.Run(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
			logger.Printf("container seed=manual_skills count=%d", len(cfg.Seed.Skills))
		}
		c.Skills = repository.NewPostgresSkillRepository(db)
		logger.Printf("container store=postgres host=%s db=%s", cfg.Database.DBHost, cfg.Database.DBName)
	} else {
		c.Skills = repository.NewMemorySkillRepository()
		logger.Printf("container store=memory reason=database_not_configured")
	}

	c.Cache = cache.NewRedis(cfg.Redis, logger)

	c.Transport = kgrpc.NewProcessTransport(cfg.Graph.WorkerBin, []string{"serve", "--db", cfg.Graph.DBPath}, logger)
	c.Transport.MaxTimeouts = cfg.Graph.MaxTimeouts
	c.Graph = knowledgegraph.NewGateway(c.Transport, cfg.Graph.MaxConcurrency, cfg.Graph.CallTimeout, logger)

	if cfg.Sync.RabbitMQURL != "" {
		q, err := queue.DialAMQP(cfg.Sync.RabbitMQURL, cfg.Sync.QueueName, logger)
		if err != nil {
			c.closeResources()
			return nil, err
		}
		c.Queue = q
		logger.Printf("container graph_queue=amqp queue=%s", cfg.Sync.QueueName)
	} else {
		c.Queue = queue.NewMemory(cfg.Sync.Buffer)
		logger.Printf("container graph_queue=memory buffer=%d", cfg.Sync.Buffer)
	}

	c.Hub = ws.NewHub(logger)
	ws.SetDefaultHub(c.Hub)
	notifier := ws.Notifier{}

	c.GraphSync = pipeline.NewGraphSyncPipeline(c.Queue, c.Graph, c.Cache, notifier, pipeline.GraphSyncParams{
		Workers:  cfg.Sync.Workers,
		RPS:      cfg.Sync.RPS,
		MaxTries: cfg.Sync.MaxTries,
		Buffer:   cfg.Sync.Buffer,
	}, logger)

	var resumes usecase.ResumeTextResolver
	if cfg.Storage.Enabled() {
		store, err := storage.NewObjectStore(ctx, cfg.Storage)
		if err != nil {
			c.closeResources()
			return nil, err
		}
		resumes = resume.NewResolver(store, logger)
	}

	if cfg.JWT.AccessSecret != "" {
		c.JWT = jwt.NewHMACService(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiresIn)
	}

	extractor := extraction.NewExtractor(extraction.DefaultLexicon(), logger)

	c.SkillUC = usecase.NewSkillUsecase(usecase.SkillDeps{
		Repo:      c.Skills,
		Extractor: extractor,
		Graph:     c.Graph,
		Sync:      c.GraphSync,
		Cache:     c.Cache,
		Notifier:  notifier,
		Logger:    logger,
	})
	c.EnrichmentUC = usecase.NewEnrichmentUsecase(usecase.EnrichmentDeps{
		Repo:      c.Skills,
		Extractor: extractor,
		Resumes:   resumes,
		Pages:     jobfeed.NewPageFetcher(),
		Sync:      c.GraphSync,
		Cache:     c.Cache,
		Notifier:  notifier,
		Logger:    logger,
	})

	return c, nil
}

// Start launches the websocket hub and the graph sync pipeline. They stop
// when ctx is cancelled; Close waits for them.
func (c *Container) Start(ctx context.Context) {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.Hub.Run(ctx)
	}()
	go func() {
		defer c.wg.Done()
		if err := c.GraphSync.Run(ctx); err != nil {
			c.Logger.Printf("container status=error component=graph_sync err=%v", err)
		}
	}()
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	ws.SetDefaultHub(nil)
	var errs []error
	if c.Queue != nil {
		errs = append(errs, c.Queue.Close())
	}
	c.wg.Wait()
	errs = append(errs, c.closeResources())
	return errors.Join(errs...)
}

func (c *Container) closeResources() error {
	var errs []error
	if c.Transport != nil {
		errs = append(errs, c.Transport.Close())
	}
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}

// HealthChecks lists the dependency checks reported by GET /health.
func (c *Container) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"redis":           c.Cache.Ping,
		"knowledge_graph": c.Graph.Ping,
	}
	if c.DB != nil {
		checks["postgres"] = c.DB.Ping
	}
	return checks
}
