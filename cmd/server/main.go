package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"kuruma/internal/compliance/handler"
	complianceMetrics "kuruma/internal/compliance/metrics"
	"kuruma/internal/compliance/service"
	accountStore "kuruma/internal/compliance/store/account"
	activityStore "kuruma/internal/compliance/store/activity"
	jwttoken "kuruma/internal/jwt_token"
	"kuruma/internal/platform/config"
	"kuruma/internal/platform/httpserver"
	"kuruma/internal/platform/logger"
	"kuruma/internal/platform/metrics"
	"kuruma/internal/platform/postgres"
	"kuruma/internal/platform/redis"
	rlMetrics "kuruma/internal/ratelimit/metrics"
	rlMiddleware "kuruma/internal/ratelimit/middleware"
	rlModels "kuruma/internal/ratelimit/models"
	"kuruma/internal/ratelimit/store/bucket"
	httptransport "kuruma/internal/transport/http"
	"kuruma/pkg/platform/audit"
	"kuruma/pkg/platform/audit/publisher"
	auditKafka "kuruma/pkg/platform/audit/store/kafka"
	auditMemory "kuruma/pkg/platform/audit/store/memory"
	auditPostgres "kuruma/pkg/platform/audit/store/postgres"
	"kuruma/pkg/platform/audit/worker"
	"kuruma/pkg/platform/circuit"
	txcontext "kuruma/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// infra holds the backing resources opened for the configured store.
type infra struct {
	db       *sql.DB
	redis    *redis.Client
	kafka    *auditKafka.Store
	accounts service.AccountStore
	activity service.ActivityStore
	storeTx  service.StoreTx
	audit    audit.Store
	outbox   *auditPostgres.Store
	buckets  rlMiddleware.BucketStore
	checks   map[string]httptransport.HealthCheck
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	auditPublisher := publisher.New(deps.audit,
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics()),
	)
	svc, err := service.New(deps.accounts, deps.activity,
		service.WithLogger(log),
		service.WithMetrics(complianceMetrics.New()),
		service.WithAuditPublisher(auditPublisher),
		service.WithStoreTx(deps.storeTx),
	)
	if err != nil {
		return fmt.Errorf("create compliance service: %w", err)
	}

	limiter := rlMiddleware.New(deps.buckets, log,
		rlMiddleware.WithDisabled(!cfg.Limits.Enabled),
		rlMiddleware.WithMetrics(rlMetrics.New()),
		rlMiddleware.WithTrustedProxies(cfg.Limits.TrustedProxyPrefixes()),
		rlMiddleware.WithLimit(rlModels.ClassRead, rlModels.Limit{Requests: cfg.Limits.ReadRequests, Window: cfg.Limits.Window}),
		rlMiddleware.WithLimit(rlModels.ClassWrite, rlModels.Limit{Requests: cfg.Limits.WriteRequests, Window: cfg.Limits.Window}),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:   log,
		Location: cfg.Location(),
		Metrics:  metrics.New(),
		Checks:   deps.checks,
		Routes: []httptransport.Registrar{
			handler.New(svc, log, jwttoken.NewJWTServiceAdapter(jwtService)),
		},
		RateLimit: limiter.ByClientIP,
	})
	srv := httpserver.New(cfg.Server, router)

	log.InfoContext(ctx, "starting kuruma",
		"addr", cfg.Server.Addr,
		"store", cfg.Store,
		"timezone", cfg.Timezone,
		"kafka", cfg.KafkaEnabled(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	if deps.outbox != nil && deps.kafka != nil {
		relay := worker.NewWorker(deps.outbox, deps.kafka,
			worker.WithLogger(log),
			worker.WithInterval(cfg.Kafka.RelayEvery),
		)
		g.Go(func() error {
			if err := relay.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{checks: map[string]httptransport.HealthCheck{}}

	// Redis only holds activity counters; accounts go to Postgres when configured.
	usePostgres := cfg.Store == config.StorePostgres ||
		(cfg.Store == config.StoreRedis && cfg.Postgres.URL != "")
	if usePostgres {
		db, err := postgres.Open(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, err
		}
		deps.db = db
		deps.checks["postgres"] = db.PingContext
	}
	if cfg.Store == config.StoreRedis {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.redis = client
		deps.checks["redis"] = client.Health
	}
	if cfg.KafkaEnabled() {
		k, err := auditKafka.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.kafka = k
		deps.checks["kafka"] = k.Ping
		if cfg.Kafka.CreateTopics {
			if err := k.EnsureTopic(ctx, 3, 1); err != nil {
				log.WarnContext(ctx, "could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
			}
		}
	}

	if deps.db != nil {
		deps.accounts = accountStore.NewPostgres(deps.db)
		deps.outbox = auditPostgres.New(deps.db)
		deps.audit = deps.outbox
	} else {
		deps.accounts = accountStore.NewInMemory()
	}
	switch {
	case deps.redis != nil:
		deps.activity = activityStore.NewRedis(deps.redis.Client)
		deps.buckets = bucket.NewFallbackStore(
			bucket.NewRedisStore(deps.redis.Client),
			bucket.NewInMemoryBucketStore(),
			circuit.New("ratelimit-redis"),
			log,
		)
	case cfg.Store == config.StorePostgres:
		deps.activity = activityStore.NewPostgres(deps.db)
		// Counters and the audit outbox live in one database, so each
		// mutation commits together with its audit event.
		deps.storeTx = txcontext.NewManager(deps.db)
	default:
		deps.activity = activityStore.NewInMemory()
	}
	if deps.buckets == nil {
		deps.buckets = bucket.NewInMemoryBucketStore()
	}
	if deps.audit == nil {
		if deps.kafka != nil {
			deps.audit = deps.kafka
		} else {
			deps.audit = auditMemory.NewInMemoryStore()
		}
	}
	return deps, nil
}

func (i *infra) close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}
