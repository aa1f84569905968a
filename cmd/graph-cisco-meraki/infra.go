package main

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/jmountifield/graph-cisco-meraki/config"
	"github.com/jmountifield/graph-cisco-meraki/internal/collector"
	"github.com/jmountifield/graph-cisco-meraki/internal/handlers"
	"github.com/jmountifield/graph-cisco-meraki/internal/repositories/run"
	"github.com/jmountifield/graph-cisco-meraki/pkg/database"
	"github.com/jmountifield/graph-cisco-meraki/pkg/graph"
	"github.com/jmountifield/graph-cisco-meraki/pkg/kafka"
	"github.com/jmountifield/graph-cisco-meraki/pkg/meraki"
	"github.com/jmountifield/graph-cisco-meraki/pkg/redis"
	"github.com/jmountifield/graph-cisco-meraki/pkg/startup"
	"github.com/jmountifield/graph-cisco-meraki/pkg/tracing"
	"github.com/jmountifield/graph-cisco-meraki/pkg/tracing/exporters"
)

// infra holds the optional backends. A nil field means the backend is disabled.
type infra struct {
	cfg    *config.Config
	logger ectologger.Logger

	db       *database.DatabaseInstance
	graph    *graph.Client
	producer *kafka.Producer
	redis    *redis.Client
	tracing  func(ctx context.Context) error
}

// register adds every enabled backend to the startup sequence.
func (i *infra) register(s *startup.Startup) {
	cfg := i.cfg

	if cfg.OTLPEnabled {
		s.AddDependency(startup.Dependency{
			Name: "tracing",
			StartFunc: func(ctx context.Context) error {
				exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
					Endpoint: cfg.OTLPEndpoint,
					Protocol: cfg.OTLPProtocol,
					Insecure: cfg.OTLPInsecure,
				})
				if err != nil {
					return err
				}
				i.tracing = tracing.Setup(cfg.AppName, exporter)
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				return i.tracing(ctx)
			},
		})
	}

	if cfg.DatabaseEnabled {
		s.AddDependency(startup.Dependency{
			Name: "postgres",
			StartFunc: func(ctx context.Context) error {
				db, err := database.Connect(ctx, databaseConfig(cfg), i.logger)
				if err != nil {
					return err
				}
				i.db = db
				return nil
			},
			StopFunc: func(context.Context) error {
				return i.db.Close()
			},
		})
	}

	if cfg.RedisEnabled {
		s.AddDependency(startup.Dependency{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, i.logger)
				if err != nil {
					return err
				}
				i.redis = client
				return nil
			},
			StopFunc: func(context.Context) error {
				return i.redis.Close()
			},
		})
	}

	if cfg.GraphEnabled {
		s.AddDependency(startup.Dependency{
			Name: "graph",
			StartFunc: func(ctx context.Context) error {
				client, err := graph.NewClient(graph.Config{
					Host:     cfg.GraphHost,
					Port:     cfg.GraphPort,
					Username: cfg.GraphUsername,
					Password: cfg.GraphPassword,
				}, i.logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					_ = client.Close(ctx)
					return err
				}
				i.graph = client
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				return i.graph.Close(ctx)
			},
		})
	}

	if cfg.KafkaEnabled {
		s.AddDependency(startup.Dependency{
			Name: "kafka",
			StartFunc: func(context.Context) error {
				i.producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.Brokers(),
					Topic:        cfg.KafkaTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: cfg.KafkaBatchTimeout,
					RequiredAcks: -1,
					Compression:  cfg.KafkaCompression,
				}, i.logger)
				return nil
			},
			StopFunc: func(context.Context) error {
				return i.producer.Close()
			},
		})
	}
}

// names lists the registered backends so the HTTP server starts after them.
func (i *infra) names() []string {
	var names []string
	if i.cfg.OTLPEnabled {
		names = append(names, "tracing")
	}
	if i.cfg.DatabaseEnabled {
		names = append(names, "postgres")
	}
	if i.cfg.RedisEnabled {
		names = append(names, "redis")
	}
	if i.cfg.GraphEnabled {
		names = append(names, "graph")
	}
	if i.cfg.KafkaEnabled {
		names = append(names, "kafka")
	}
	return names
}

// collector builds the collection service over the started backends.
func (i *infra) collector() (*collector.Service, *run.Repository, error) {
	cfg := i.cfg

	merakiCfg := meraki.DefaultConfig()
	merakiCfg.BaseURL = cfg.MerakiBaseURL
	merakiCfg.APIKey = cfg.MerakiAPIKey
	merakiCfg.Timeout = cfg.MerakiTimeout
	merakiCfg.PerPage = cfg.MerakiPerPage
	merakiCfg.MaxRetries = cfg.MerakiMaxRetries
	client := meraki.NewClient(merakiCfg, i.logger)

	opts := collector.Options{
		Concurrency: cfg.StepConcurrency,
		LockKey:     redis.RunLockKey(cfg.MerakiAPIKey),
		LockTTL:     cfg.RunLockTTL,
	}

	var runs *run.Repository
	if i.db != nil {
		runs = run.NewRepository(i.db, i.logger)
		opts.Runs = runs
	}
	if i.redis != nil {
		opts.Locker = redis.NewLocker(i.redis, "")
	}
	if i.graph != nil {
		opts.Graph = graph.NewWriter(i.graph, i.logger)
	}
	if i.producer != nil {
		opts.Events = i.producer
	}

	svc, err := collector.New(client, opts, i.logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, runs, nil
}

// checks returns the readiness checks of the started backends.
func (i *infra) checks() map[string]handlers.Check {
	checks := map[string]handlers.Check{}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Ping
	}
	if i.graph != nil {
		checks["graph"] = i.graph.VerifyConnectivity
	}
	return checks
}

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}

func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
