// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. LABSCHED_HTTP_PORT.
const Prefix = "LABSCHED"

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Notification transports.
const (
	TransportLog       = "log"
	TransportRabbitMQ  = "rabbitmq"
	TransportTelegram  = "telegram"
	TransportWebsocket = "websocket"
)

// Config captures environment driven configuration values for the lab scheduler.
type Config struct {
	HTTPPort     int    `envconfig:"HTTP_PORT" default:"8080"`
	TimeZone     string `envconfig:"TIMEZONE" default:"America/Sao_Paulo"`
	JWTSecret    string `envconfig:"JWT_SECRET"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"lab-scheduler"`
	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`

	Store  StoreConfig  `envconfig:"STORE"`
	Cache  CacheConfig  `envconfig:"CACHE"`
	Notify NotifyConfig `envconfig:"NOTIFY"`

	// Location is TimeZone resolved by Load.
	Location *time.Location `ignored:"true"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Backend       string `envconfig:"BACKEND" default:"sqlite"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"labscheduler.db"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"labscheduler"`
}

// CacheConfig selects the availability cache.
type CacheConfig struct {
	Backend       string        `envconfig:"BACKEND" default:"memory"`
	TTL           time.Duration `envconfig:"TTL" default:"30s"`
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
}

// NotifyConfig lists the notification transports and their settings.
type NotifyConfig struct {
	Transports       []string          `envconfig:"TRANSPORTS" default:"log"`
	RabbitURL        string            `envconfig:"RABBITMQ_URL"`
	RabbitExchange   string            `envconfig:"RABBITMQ_EXCHANGE" default:"lab.notifications"`
	TelegramToken    string            `envconfig:"TELEGRAM_TOKEN"`
	TelegramChats    map[string]string `envconfig:"TELEGRAM_CHATS"`
	TelegramUsers    map[string]string `envconfig:"TELEGRAM_USERS"`
	WebsocketOrigins []string          `envconfig:"WEBSOCKET_ORIGINS"`
	HTMLChannels     []string          `envconfig:"HTML_CHANNELS"`
	// Threads maps a channel id to the thread its messages are posted in.
	Threads map[string]string `envconfig:"THREADS"`
	// Table maps a lab type to "|"-separated channel ids, overriding the
	// built-in routing for that type.
	Table map[string]string `envconfig:"TABLE"`
}

// RoutingTable returns Table with its channel lists split.
func (n NotifyConfig) RoutingTable() map[string][]string {
	if len(n.Table) == 0 {
		return nil
	}
	table := make(map[string][]string, len(n.Table))
	for labType, value := range n.Table {
		var channels []string
		for _, ch := range strings.Split(value, "|") {
			if ch = strings.TrimSpace(ch); ch != "" && !slices.Contains(channels, ch) {
				channels = append(channels, ch)
			}
		}
		table[labType] = channels
	}
	return table
}

// Enabled reports whether a transport is configured.
func (n NotifyConfig) Enabled(transport string) bool {
	return slices.Contains(n.Transports, transport)
}

// Load reads an optional .env file from the working directory and then the
// process environment.
func Load() (Config, error) {
	return LoadFiles(".env")
}

// LoadFiles reads the given dotenv files, skipping missing ones, before
// parsing the environment. Variables already set take precedence.
//
// Missing required values and invalid values are reported together in one
// error, keyed by variable name.
func LoadFiles(files ...string) (Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("falha ao ler %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("variáveis de ambiente inválidas: %w", err)
	}
	normalize(&cfg)

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if cfg.JWTSecret == "" {
		missing = append(missing, key("JWT_SECRET"))
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, key("HTTP_PORT"))
	}
	if loc, err := time.LoadLocation(cfg.TimeZone); err != nil {
		invalid = append(invalid, key("TIMEZONE"))
	} else {
		cfg.Location = loc
	}

	switch cfg.Store.Backend {
	case StoreMemory:
	case StoreSQLite:
		if cfg.Store.SQLitePath == "" {
			missing = append(missing, key("STORE_SQLITE_PATH"))
		}
	case StorePostgres:
		if cfg.Store.PostgresDSN == "" {
			missing = append(missing, key("STORE_POSTGRES_DSN"))
		}
	case StoreMongo:
		if cfg.Store.MongoURI == "" {
			missing = append(missing, key("STORE_MONGO_URI"))
		}
	default:
		invalid = append(invalid, key("STORE_BACKEND"))
	}

	switch cfg.Cache.Backend {
	case CacheNone:
	case CacheMemory, CacheRedis:
		if cfg.Cache.TTL <= 0 {
			invalid = append(invalid, key("CACHE_TTL"))
		}
		if cfg.Cache.Backend == CacheRedis && cfg.Cache.RedisAddr == "" {
			missing = append(missing, key("CACHE_REDIS_ADDR"))
		}
	default:
		invalid = append(invalid, key("CACHE_BACKEND"))
	}

	for _, t := range cfg.Notify.Transports {
		switch t {
		case TransportLog, TransportWebsocket:
		case TransportRabbitMQ:
			if cfg.Notify.RabbitURL == "" {
				missing = append(missing, key("NOTIFY_RABBITMQ_URL"))
			}
		case TransportTelegram:
			if cfg.Notify.TelegramToken == "" {
				missing = append(missing, key("NOTIFY_TELEGRAM_TOKEN"))
			}
		default:
			invalid = append(invalid, key("NOTIFY_TRANSPORTS"))
		}
	}

	for channel, thread := range cfg.Notify.Threads {
		if _, err := strconv.ParseInt(thread, 10, 64); channel == "" || err != nil {
			invalid = append(invalid, key("NOTIFY_THREADS"))
			break
		}
	}
	for labType, channels := range cfg.Notify.RoutingTable() {
		if labType == "" || len(channels) == 0 {
			invalid = append(invalid, key("NOTIFY_TABLE"))
			break
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("variáveis de ambiente obrigatórias não definidas: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("valores inválidos nas variáveis de ambiente: %s", strings.Join(slices.Compact(invalid), ", "))
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.TimeZone = strings.TrimSpace(cfg.TimeZone)
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	transports := make([]string, 0, len(cfg.Notify.Transports))
	for _, t := range cfg.Notify.Transports {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" && !slices.Contains(transports, t) {
			transports = append(transports, t)
		}
	}
	cfg.Notify.Transports = transports
	cfg.Notify.Threads = trimMap(cfg.Notify.Threads, false)
	cfg.Notify.Table = trimMap(cfg.Notify.Table, true)
}

func trimMap(m map[string]string, lowerKeys bool) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		k = strings.TrimSpace(k)
		if lowerKeys {
			k = strings.ToLower(k)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

func key(name string) string {
	return Prefix + "_" + name
}
