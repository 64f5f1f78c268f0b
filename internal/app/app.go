// Package app builds the shared dependency graph of the server and the admin
// tool from configuration.
package app

import (
	"context"
	"matchchat/backend/internal/archive"
	"matchchat/backend/internal/chat"
	"matchchat/backend/internal/cleanup"
	"matchchat/backend/internal/complaint"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/lock"
	"matchchat/backend/internal/match"
	"matchchat/backend/internal/notify"
	"matchchat/backend/internal/storage"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies is everything the binaries run on.
type Dependencies struct {
	Config *config.Config
	Log    *zap.Logger

	DB    *gorm.DB
	Redis *redis.Client
	NATS  *nats.Conn

	SQL    *storage.SQLStore
	KV     *storage.RedisStore
	Bus    *notify.Bus
	Source notify.Source

	Chats      *chat.Store
	Matches    *match.Engine
	Complaints *complaint.Service
	Archiver   *archive.Archiver

	Runner       *cleanup.Runner
	ChatJob      *cleanup.ChatJob
	MatchJob     *cleanup.MatchJob
	ComplaintJob *cleanup.ComplaintJob
}

// Setup connects to Postgres, Redis, the bus and object storage and wires
// the services.
func Setup(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Log: log}

	db, err := storage.OpenPostgres(cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	d.DB = db
	d.SQL = storage.NewSQLStore(db)

	d.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		d.Close()
		return nil, errors.Wrap(err, "connect redis")
	}
	d.KV = storage.NewRedisStore(d.Redis)

	switch cfg.Bus.Driver {
	case "nats":
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("matchchat"))
		if err != nil {
			d.Close()
			return nil, errors.Wrap(err, "connect nats")
		}
		d.NATS = nc
		d.Bus = notify.NewBus(&notify.NATSTransport{Conn: nc}, log)
		d.Source = &notify.NATSSource{Conn: nc}
	case "", "redis":
		d.Bus = notify.NewBus(&notify.RedisTransport{Store: d.KV}, log)
		d.Source = &notify.RedisSource{Client: d.Redis}
	default:
		d.Close()
		return nil, errors.Errorf("unknown bus driver %q", cfg.Bus.Driver)
	}

	objects, err := archive.NewS3Storage(ctx, cfg.S3)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.Chats = chat.NewStore(d.KV, d.SQL, d.Bus, cfg.Chat.TTL, log)
	if cfg.Chat.ArchiveGrace > 0 {
		d.Chats.ArchiveGrace = cfg.Chat.ArchiveGrace
	}
	d.Matches = match.NewEngine(d.SQL, d.SQL, d.Chats, d.Bus, log)
	d.Complaints = complaint.NewService(d.SQL, d.SQL, d.Chats, d.Bus, log)
	d.Archiver = archive.NewArchiver(d.KV, objects, log)

	d.Runner = cleanup.NewRunner(lock.NewLocker(d.KV), cfg.Lock.TTL, log)
	d.ChatJob = cleanup.NewChatJob(d.KV, d.Archiver, log)
	d.MatchJob = cleanup.NewMatchJob(d.SQL, d.Chats, d.Bus, log)
	d.ComplaintJob = cleanup.NewComplaintJob(d.SQL, cfg.Complaint.Retention)
	return d, nil
}

// Jobs returns the maintenance jobs by name.
func (d *Dependencies) Jobs() map[string]cleanup.Job {
	return map[string]cleanup.Job{
		d.ChatJob.Name():      d.ChatJob,
		d.MatchJob.Name():     d.MatchJob,
		d.ComplaintJob.Name(): d.ComplaintJob,
	}
}

// Schedule registers every job on s with its configured schedule.
func (d *Dependencies) Schedule(s *cleanup.Scheduler) error {
	entries := []struct {
		spec string
		job  cleanup.Job
	}{
		{d.Config.Cleanup.Schedule, d.ChatJob},
		{d.Config.Match.Schedule, d.MatchJob},
		{d.Config.Complaint.Schedule, d.ComplaintJob},
	}
	for _, e := range entries {
		if err := s.Add(e.spec, e.job); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every connection that was opened.
func (d *Dependencies) Close() {
	if d.NATS != nil {
		d.NATS.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Log.Warn("close redis", zap.Error(err))
		}
	}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
