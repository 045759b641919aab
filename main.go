package main

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/MicahParks/keyfunc"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow/api"
	"taskflow/bus"
	"taskflow/config"
	"taskflow/digest"
	"taskflow/domain"
	"taskflow/lifecycle"
	"taskflow/notify"
	"taskflow/storage"
	"taskflow/sweep"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	local, err := storage.NewLocal(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("local storage: %v", err)
	}

	var store storage.TaskStore
	if cfg.Storage.ConnectionString != "" {
		remote, err := storage.NewRemote(cfg.Storage.ConnectionString, cfg.Storage.TasksTable)
		if err != nil {
			log.Fatalf("remote storage: %v", err)
		}
		store = storage.NewDual(remote, local)
	} else {
		logger.Warn("no storage connection string; all sessions use the local store")
		store = storage.NewDual(local, local)
	}

	var rc *redis.Client
	if cfg.Redis.ConnectionString != "" {
		rc = redis.NewClient(redisOptions(cfg.Redis.ConnectionString))
	}
	cached := storage.NewCache(store, rc, cfg.Redis.CacheTTL)

	b := bus.New()
	if rc != nil {
		relay := bus.NewRelay(b, rc, cfg.Redis.StatusChannel, uuid.NewString(), logger)
		go relay.Run(context.Background())
	}

	bridge := newBridge(cfg.Storage, logger)
	ctrl := lifecycle.NewController(cached, bridge, b, logger)
	feed := storage.NewFeed(cached, cfg.Jobs.FeedInterval, logger)

	sessions := lifecycle.NewSessionManager(func(owner domain.Owner) []lifecycle.Runner {
		return []lifecycle.Runner{
			sweep.New(cached, owner, cfg.Jobs.SweepInterval, logger),
			&digestRunner{
				feed:  feed,
				bus:   b,
				pub:   digest.New(bridge, owner, time.Local, logger),
				owner: owner,
			},
		}
	})

	auth := newAuth(cfg.Auth)
	dedup := api.NewRedisDeduper(rc, cfg.Redis.DeduperTTL)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, cached, ctrl, auth, dedup, logger)
	api.RegisterStream(e, feed, b, sessions, auth)

	e.Logger.Fatal(e.Start(":" + cfg.Port))
}

func newAuth(cfg config.AuthConfig) *api.Auth {
	if cfg.TestMode {
		return api.NewTestAuth([]byte(cfg.TestSecret))
	}
	if cfg.Domain == "" {
		// Local-only deployment; every request is an anonymous session.
		return api.NewTestAuth(nil)
	}
	jwks, err := keyfunc.Get(cfg.JWKSURL(), keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, cfg.Audience, cfg.Issuer())
}

func newBridge(cfg config.StorageConfig, logger *log.Logger) *notify.Bridge {
	if cfg.ConnectionString == "" {
		return notify.New(nil, nil, logger)
	}
	queue, err := azqueue.NewQueueClientFromConnectionString(cfg.ConnectionString, cfg.ReminderQueue, nil)
	if err != nil {
		log.Fatalf("reminder queue: %v", err)
	}
	svc, err := aztables.NewServiceClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		log.Fatalf("digest table: %v", err)
	}
	return notify.New(queue, svc.NewClient(cfg.DigestsTable), logger)
}

// digestRunner glues the live task feed to the daily digest publisher for
// one owner session: each status change triggers a refetch, each snapshot a
// recount.
type digestRunner struct {
	feed  *storage.Feed
	bus   *bus.StatusBus
	pub   *digest.Publisher
	owner domain.Owner
}

func (r *digestRunner) Run(ctx context.Context) {
	signal := make(chan struct{}, 1)
	unsubscribe := r.bus.Subscribe(func(domain.StatusChange) {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	r.pub.Run(ctx, r.feed.Watch(ctx, r.owner, signal))
}

// redisOptions parses either a redis:// URL or the Azure-style
// host:port,password=...,ssl=true connection string.
func redisOptions(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
