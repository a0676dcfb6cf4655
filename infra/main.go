package infra

import (
	"context"

	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/infra/produce"
	"github.com/tnqbao/gau-media-service/media"
)

type Infra struct {
	Redis    *RedisClient
	Postgres *PostgresClient
	Logger   *LoggerClient
	RabbitMQ *RabbitMQClient
	Produce  *produce.Produce
	Minio    *MinioClient
	Disks    *DiskManager
	Images   *ImageProcessor

	env *config.EnvConfig
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	logger := InitLoggerClient(cfg.EnvConfig)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	redis := InitRedisClient(cfg.EnvConfig)
	if redis == nil {
		panic("Failed to initialize Redis service")
	}

	postgres := InitPostgresClient(cfg.EnvConfig)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	rabbitMQ := InitRabbitMQClient(cfg.EnvConfig)
	if rabbitMQ == nil {
		panic("Failed to initialize RabbitMQ service")
	}

	produceService := produce.InitProduce(rabbitMQ.Channel)
	if produceService == nil {
		panic("Failed to initialize Produce service")
	}

	// MinIO is only needed when a disk is backed by it
	var minio *MinioClient
	for _, driver := range cfg.EnvConfig.Media.Disks {
		if driver == DriverMinio {
			minio = InitMinioClient(cfg.EnvConfig)
			break
		}
	}

	disks, err := InitDisks(context.Background(), cfg.EnvConfig, minio, redis)
	if err != nil {
		panic("Failed to initialize media disks: " + err.Error())
	}

	infraInstance = &Infra{
		Redis:    redis,
		Postgres: postgres,
		Logger:   logger,
		RabbitMQ: rabbitMQ,
		Produce:  produceService,
		Minio:    minio,
		Disks:    disks,
		Images:   NewImageProcessor(),
		env:      cfg.EnvConfig,
	}

	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}

// NewMediaLibrary wires the media engine to this process's clients.
func (i *Infra) NewMediaLibrary(store media.Store) *media.Library {
	cfg := media.Config{
		Disks:  i.Disks,
		Store:  store,
		Images: i.Images,
		Logger: i.Logger,
	}
	if i.Produce != nil {
		cfg.Events = i.Produce.MediaEvents
	}
	if i.env != nil {
		cfg.FetchTimeout = i.env.Media.FetchTimeout
		cfg.TempDir = i.env.Media.TempDir
	}
	return media.NewLibrary(cfg)
}

// Health pings every backing service and returns the failures by name.
func (i *Infra) Health(ctx context.Context) map[string]string {
	failures := map[string]string{}
	if i.Postgres != nil {
		sqlDB, err := i.Postgres.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			failures["postgres"] = err.Error()
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Ping(ctx); err != nil {
			failures["redis"] = err.Error()
		}
	}
	if i.RabbitMQ != nil && (i.RabbitMQ.Connection == nil || i.RabbitMQ.Connection.IsClosed()) {
		failures["rabbitmq"] = "connection closed"
	}
	if i.Minio != nil {
		online, total, err := i.Minio.Health(ctx)
		if err != nil {
			failures["minio"] = err.Error()
		} else if online < total {
			failures["minio"] = "some servers are offline"
		}
	}
	return failures
}
