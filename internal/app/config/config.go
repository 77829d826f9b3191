package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token" env:"BOT_TOKEN" env-required:"true"`
	GroupChatID int64  `yaml:"group_chat_id" env:"GROUP_CHAT_ID" env-required:"true"`
}

type AuthConfig struct {
	// Empty list allows everyone.
	AllowedUserIDs []int64 `yaml:"allowed_user_ids" env:"ALLOWED_USER_IDS" env-separator:","`
}

type StorageConfig struct {
	// Backend is "mongo" or "memory".
	Backend string `yaml:"backend" env:"STORAGE" env-default:"mongo"`
}

type MongoDBConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	User     string `yaml:"user" env:"MONGO_USER"`
	Password string `yaml:"password" env:"MONGO_PASSWORD"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"offer_service_db"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type OfferCacheConfig struct {
	TTL time.Duration `yaml:"ttl" env:"OFFER_CACHE_TTL" env-default:"1h"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled" env:"NATS_ENABLED" env-default:"false"`
	URL     string `yaml:"url" env:"NATS_URL" env-default:"nats://localhost:4222"`
}

type StatsConfig struct {
	// Timezone anchors the day/month/year aggregation windows.
	Timezone string `yaml:"timezone" env:"TIMEZONE" env-default:"Europe/Kyiv"`
}

type ExportConfig struct {
	Path string `yaml:"path" env:"EXPORT_PATH" env-default:"data/offers.csv"`
}

type LoggerConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
	TimeFormat string `yaml:"time_format" env:"LOG_TIME_FORMAT" env-default:"2006-01-02T15:04:05.000Z07:00"`
}

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	MongoDB    MongoDBConfig    `yaml:"mongo"`
	Redis      RedisConfig      `yaml:"redis"`
	OfferCache OfferCacheConfig `yaml:"offer_cache"`
	NATS       NATSConfig       `yaml:"nats"`
	Stats      StatsConfig      `yaml:"stats"`
	Export     ExportConfig     `yaml:"export"`
	Logger     LoggerConfig     `yaml:"logger"`
}

func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		err := cleanenv.ReadEnv(&cfg)
		if err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	err := cleanenv.ReadConfig(path, &cfg)
	if err != nil {
		if _, ok := err.(*os.PathError); ok && path != "" {
			log.Printf("Warning: Config file not found at %s, attempting to load from environment variables only.", path)
			errEnv := cleanenv.ReadEnv(&cfg)
			if errEnv != nil {
				return nil, errEnv
			}
			return &cfg, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	return cfg
}
