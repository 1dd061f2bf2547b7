package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config defines the structure of the configuration file. A single
// instance is built at startup and injected into every collaborator
// that needs remote or local storage access.
type Config struct {
	GitCommit    string         `yaml:"git_commit" envconfig:"FREELIT_GIT_COMMIT"`
	GitTag       string         `yaml:"git_tag" envconfig:"FREELIT_GIT_TAG"`
	BuildTime    string         `yaml:"build_time" envconfig:"FREELIT_BUILD_TIME"`
	IsProduction bool           `yaml:"is_production" envconfig:"FREELIT_IS_PRODUCTION"`
	LogLevel     zapcore.Level  `yaml:"log_level" envconfig:"FREELIT_LOG_LEVEL"`
	LogFile      string         `yaml:"log_file" envconfig:"FREELIT_LOG_FILE"`
	Remote       RemoteConfig   `yaml:"remote"`
	BoltDB       BoltDBConfig   `yaml:"boltdb"`
	Redis        RedisConfig    `yaml:"redis"`
	Library      LibraryConfig  `yaml:"library"`
	Download     DownloadConfig `yaml:"download"`
}

// RemoteConfig carries the backend project identifiers the original
// deployment provisions once per installation.
type RemoteConfig struct {
	Endpoint       string        `yaml:"endpoint" envconfig:"FREELIT_REMOTE_ENDPOINT"`
	ProjectID      string        `yaml:"project_id" envconfig:"FREELIT_REMOTE_PROJECT_ID"`
	DatabaseID     string        `yaml:"database_id" envconfig:"FREELIT_REMOTE_DATABASE_ID"`
	CollectionID   string        `yaml:"collection_id" envconfig:"FREELIT_REMOTE_COLLECTION_ID"`
	BucketID       string        `yaml:"bucket_id" envconfig:"FREELIT_REMOTE_BUCKET_ID"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"FREELIT_REMOTE_REQUEST_TIMEOUT"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" envconfig:"FREELIT_BOLTDB_FILE_PATH"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"FREELIT_BOLTDB_TIMEOUT"`
	BucketName string        `yaml:"bucket_name" envconfig:"FREELIT_BOLTDB_BUCKET_NAME"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"FREELIT_REDIS_HOST"`
	Port          string        `yaml:"port" envconfig:"FREELIT_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"FREELIT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"FREELIT_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"FREELIT_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"FREELIT_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"FREELIT_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"FREELIT_REDIS_USERNAME"`
	Password      string        `yaml:"password" envconfig:"FREELIT_REDIS_PASSWORD"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"FREELIT_REDIS_DATABASE_INDEX"`
}

// LibraryConfig selects the flag store backend and the home feed shape.
type LibraryConfig struct {
	Backend       string `yaml:"backend" envconfig:"FREELIT_LIBRARY_BACKEND"`
	HomeFeedLimit int    `yaml:"home_feed_limit" envconfig:"FREELIT_LIBRARY_HOME_FEED_LIMIT"`
}

// DownloadConfig describes where book files land on the device.
type DownloadConfig struct {
	Dir           string        `yaml:"dir" envconfig:"FREELIT_DOWNLOAD_DIR"`
	TempDir       string        `yaml:"temp_dir" envconfig:"FREELIT_DOWNLOAD_TEMP_DIR"`
	Extension     string        `yaml:"extension" envconfig:"FREELIT_DOWNLOAD_EXTENSION"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" envconfig:"FREELIT_DOWNLOAD_FETCH_TIMEOUT"`
	AskPermission bool          `yaml:"ask_permission" envconfig:"FREELIT_DOWNLOAD_ASK_PERMISSION"`
}

// Flag store backend identifiers.
const (
	BoltBackend  = "bolt"
	RedisBackend = "redis"
)

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and provides an instance of the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Remote.Endpoint) == 0 || len(config.Remote.ProjectID) == 0 {
		return errors.New("make sure to set valid remote endpoint and project id in configuration file")
	}

	if len(config.Remote.DatabaseID) == 0 || len(config.Remote.CollectionID) == 0 {
		return errors.New("make sure to set valid remote database and collection ids in configuration file")
	}

	if config.Library.Backend != BoltBackend && config.Library.Backend != RedisBackend {
		return fmt.Errorf("unknown library flag store backend: %q", config.Library.Backend)
	}

	if config.Library.Backend == RedisBackend && (len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0) {
		return errors.New("make sure to set valid redis address and port in configuration file")
	}

	if config.Library.HomeFeedLimit <= 0 {
		config.Library.HomeFeedLimit = 10
	}

	if len(config.Download.Extension) == 0 {
		config.Download.Extension = ".epub"
	}

	if config.Remote.RequestTimeout <= 0 {
		config.Remote.RequestTimeout = 30 * time.Second
	}

	if config.Download.FetchTimeout <= 0 {
		config.Download.FetchTimeout = 5 * time.Minute
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile("./config.yml")
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration. The env file is optional.
	_ = godotenv.Load("./config.env")

	// Use environment variables with prefix `FREELIT`.
	err = LoadConfigEnvs("FREELIT", config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
