// Package app assembles the sync core from configuration. Both binaries share it.
package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"daily-driver/internal/cache"
	"daily-driver/internal/config"
	"daily-driver/internal/events"
	"daily-driver/internal/repository"
	"daily-driver/internal/service"
	"daily-driver/internal/session"
)

// Core holds the constructed components of one process.
type Core struct {
	Config   config.Config
	Log      *logrus.Logger
	Store    repository.DocumentStore
	Cache    *cache.UserData
	Sessions *session.Manager
	Tokens   *session.TokenIssuer
	Profiles *service.ProfileService
	Mutator  *service.Mutator
	Recent   *service.RecentTasks

	db        *gorm.DB
	rdb       *redis.Client
	publisher *events.AMQPPublisher
}

// Open connects the configured store and event publisher and builds the services.
// The cache is not bound to the session; callers decide when to Bind.
func Open(cfg config.Config, log *logrus.Logger) (*Core, error) {
	c := &Core{
		Config:   cfg,
		Log:      log,
		Cache:    cache.New(),
		Sessions: session.NewManager(),
		Tokens:   session.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL),
	}

	switch cfg.StoreDriver {
	case config.DriverRedis:
		c.rdb = repository.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		c.Store = repository.NewRedisDocumentStore(c.rdb)
	default:
		db, err := repository.NewDB(cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		c.db = db
		c.Store = repository.NewGormDocumentStore(db)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitMQURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("events: %w", err)
		}
		c.publisher = pub
		publisher = pub
	}

	c.Profiles = service.NewProfileService(c.Store, c.Cache, c.Sessions, log.WithField("component", "profiles"))
	c.Mutator = service.NewMutator(c.Store, c.Cache, c.Sessions, publisher, log.WithField("component", "mutator"))
	c.Recent = service.NewRecentTasks(c.Cache, cfg.RecentTasksLimit)

	log.WithFields(logrus.Fields{
		"store":  cfg.StoreDriver,
		"events": cfg.RabbitMQURL != "",
	}).Info("core ready")
	return c, nil
}

// Close releases connections opened by Open.
func (c *Core) Close() {
	c.publisher.Close()
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
