package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type EnvConfig struct {
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	CORS struct {
		AllowDomains string
		GlobalDomain string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
		URLTTL    time.Duration // how long resolved media URLs stay cached
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		Bucket       string
		UseSSL       bool
		PublicURL    string
	}
	S3 struct {
		Region       string
		Bucket       string
		Endpoint     string
		AccessKey    string
		SecretKey    string
		PublicURL    string
		UsePathStyle bool
	}
	Local struct {
		Root    string
		BaseURL string
	}
	Media struct {
		Disks           map[string]string // logical disk name -> driver (local, minio, s3)
		DiskBuckets     map[string]string // logical disk name -> dedicated bucket
		CollectionsFile string
		FetchTimeout    time.Duration
		TempDir         string
		PresignExpiry   time.Duration
		MaxUploadSize   int64
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	Environment struct {
		Mode  string
		Group string
	}
	Port string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")
	if config.Postgres.Port == "" {
		config.Postgres.Port = "5432"
	}

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")
	config.CORS.GlobalDomain = os.Getenv("GLOBAL_DOMAIN")

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	if config.Redis.RedisHost == "" {
		config.Redis.RedisHost = "localhost"
	}
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")
	if config.Redis.RedisPort == "" {
		config.Redis.RedisPort = "6379"
	}
	config.Redis.URLTTL = durationSeconds("MEDIA_URL_CACHE_TTL", 10*time.Minute)

	// RabbitMQ
	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	if config.RabbitMQ.Host == "" {
		config.RabbitMQ.Host = "localhost"
	}
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}

	// MinIO
	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.Bucket = os.Getenv("MINIO_BUCKET")
	if config.Minio.Bucket == "" {
		config.Minio.Bucket = "media"
	}
	config.Minio.UseSSL = os.Getenv("MINIO_USE_SSL") == "true"
	config.Minio.PublicURL = strings.TrimRight(os.Getenv("MINIO_PUBLIC_URL"), "/")

	// S3 compatible storage
	config.S3.Region = os.Getenv("S3_REGION")
	if config.S3.Region == "" {
		config.S3.Region = "us-east-1"
	}
	config.S3.Bucket = os.Getenv("S3_BUCKET")
	config.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	config.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	config.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
	config.S3.PublicURL = strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/")
	config.S3.UsePathStyle = os.Getenv("S3_USE_PATH_STYLE") == "true"

	// Local disk
	config.Local.Root = os.Getenv("MEDIA_LOCAL_ROOT")
	if config.Local.Root == "" {
		config.Local.Root = "storage"
	}
	config.Local.BaseURL = strings.TrimRight(os.Getenv("MEDIA_LOCAL_URL"), "/")
	if config.Local.BaseURL == "" {
		config.Local.BaseURL = "http://localhost:8080/storage"
	}

	// Media engine
	disks := os.Getenv("MEDIA_DISKS")
	if disks == "" {
		disks = "public=local"
	}
	config.Media.Disks = ParseDiskMap(disks)
	config.Media.DiskBuckets = ParseDiskMap(os.Getenv("MEDIA_DISK_BUCKETS"))
	config.Media.CollectionsFile = os.Getenv("MEDIA_COLLECTIONS_FILE")
	if config.Media.CollectionsFile == "" {
		config.Media.CollectionsFile = "collections.yaml"
	}
	config.Media.FetchTimeout = durationSeconds("MEDIA_FETCH_TIMEOUT", 30*time.Second)
	config.Media.TempDir = os.Getenv("MEDIA_TEMP_DIR")
	config.Media.PresignExpiry = durationSeconds("MEDIA_PRESIGN_EXPIRY", time.Hour)
	if val := os.Getenv("MEDIA_MAX_UPLOAD_SIZE"); val != "" {
		fmt.Sscanf(val, "%d", &config.Media.MaxUploadSize)
	}
	if config.Media.MaxUploadSize <= 0 {
		config.Media.MaxUploadSize = 52428800 // 50MB
	}

	// Grafana/OpenTelemetry
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	if grafanaEndpoint == "" {
		grafanaEndpoint = "https://grafana.gauas.online"
	}
	config.Grafana.OTLPEndpoint = strings.TrimPrefix(strings.TrimPrefix(grafanaEndpoint, "https://"), "http://")
	config.Grafana.ServiceName = os.Getenv("SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "gau-media-service"
	}

	config.Environment.Mode = os.Getenv("DEPLOY_ENV")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}
	config.Environment.Group = os.Getenv("GROUP_NAME")
	if config.Environment.Group == "" {
		config.Environment.Group = "local"
	}

	config.Port = os.Getenv("PORT")
	if config.Port == "" {
		config.Port = "8080"
	}

	return &config
}

// ParseDiskMap reads "name=driver" pairs separated by commas. A bare name
// maps to a driver of the same name.
func ParseDiskMap(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, driver, found := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !found {
			driver = name
		}
		out[name] = strings.ToLower(strings.TrimSpace(driver))
	}
	return out
}

func durationSeconds(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
