package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Neo4j   Neo4jConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Feed    FeedConfig
	Scoring ScoringConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type Neo4jConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string
	Database string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type FeedConfig struct {
	BaseURL    string
	APIKey     string
	Source     string
	PageSize   int
	TimeoutSec int
}

type ScoringConfig struct {
	Fit         FitWeightsConfig         `mapstructure:"fit"`
	Partnership PartnershipWeightsConfig `mapstructure:"partnership"`
	Enhancement EnhancementConfig        `mapstructure:"enhancement"`
}

type FitWeightsConfig struct {
	Version      string  `mapstructure:"version"`
	Technical    float64 `mapstructure:"technical"`
	Domain       float64 `mapstructure:"domain"`
	Value        float64 `mapstructure:"value"`
	Innovation   float64 `mapstructure:"innovation"`
	Relationship float64 `mapstructure:"relationship"`
}

type PartnershipWeightsConfig struct {
	Version         string  `mapstructure:"version"`
	Complementarity float64 `mapstructure:"complementarity"`
	Coverage        float64 `mapstructure:"coverage"`
	Geographic      float64 `mapstructure:"geographic"`
	Size            float64 `mapstructure:"size"`
	Certification   float64 `mapstructure:"certification"`
	Relationship    float64 `mapstructure:"relationship"`
}

type EnhancementConfig struct {
	Version          string  `mapstructure:"version"`
	DirectMultiplier float64 `mapstructure:"direct_multiplier"`
	MutualIncrement  float64 `mapstructure:"mutual_increment"`
	MutualCeiling    float64 `mapstructure:"mutual_ceiling"`
	PathBonusBase    float64 `mapstructure:"path_bonus_base"`
	MaxImprovement   int     `mapstructure:"max_improvement"`
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bidfit")

	viper.SetEnvPrefix("BIDFIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("neo4j.enabled", false)
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("sqlite.path", "./data/bidfit.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 300)

	viper.SetDefault("feed.baseURL", "")
	viper.SetDefault("feed.source", "sam.gov")
	viper.SetDefault("feed.pageSize", 100)
	viper.SetDefault("feed.timeoutSec", 15)

	viper.SetDefault("scoring.fit.version", "v1")
	viper.SetDefault("scoring.fit.technical", 0.30)
	viper.SetDefault("scoring.fit.domain", 0.25)
	viper.SetDefault("scoring.fit.value", 0.20)
	viper.SetDefault("scoring.fit.innovation", 0.15)
	viper.SetDefault("scoring.fit.relationship", 0.10)

	viper.SetDefault("scoring.partnership.version", "v1")
	viper.SetDefault("scoring.partnership.complementarity", 0.25)
	viper.SetDefault("scoring.partnership.coverage", 0.20)
	viper.SetDefault("scoring.partnership.geographic", 0.15)
	viper.SetDefault("scoring.partnership.size", 0.15)
	viper.SetDefault("scoring.partnership.certification", 0.15)
	viper.SetDefault("scoring.partnership.relationship", 0.10)

	viper.SetDefault("scoring.enhancement.version", "v1")
	viper.SetDefault("scoring.enhancement.direct_multiplier", 10.0)
	viper.SetDefault("scoring.enhancement.mutual_increment", 1.5)
	viper.SetDefault("scoring.enhancement.mutual_ceiling", 6.0)
	viper.SetDefault("scoring.enhancement.path_bonus_base", 5.0)
	viper.SetDefault("scoring.enhancement.max_improvement", 15)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
