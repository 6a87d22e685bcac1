package server

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"taskflow/internal/domain/errors"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type S3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	PublicURL string `json:"public_url"`
}

type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillInterval time.Duration
	Prefix         string
}

type Config struct {
	Addr        string
	Port        int
	Env         string
	Storage     string
	DBStr       string
	MigratePath string
	MongoURI    string
	MongoDB     string
	JWTSecret   string
	TokenTTL    time.Duration
	ResetTTL    time.Duration
	Timezone    string
	AvatarDir   string
	PublicURL   string
	SMTP        SMTPConfig
	S3          S3Config
	RedisAddr   string
	RedisPass   string
	RateLimit   RateLimitConfig
	CORSOrigins []string
}

const (
	defaultAddr        = "0.0.0.0"
	defaultPort        = 5000
	defaultDBStr       = "postgresql://taskflow:taskflow@db:5432/taskflow?sslmode=disable"
	defaultMigratePath = "migrations"
	defaultMongoURI    = "mongodb://localhost:27017"
	defaultMongoDB     = "taskflow"
	defaultAvatarDir   = "uploads"
	defaultGmailHost   = "smtp.gmail.com"
)

func DefaultConfig() *Config {
	return &Config{
		Addr:        defaultAddr,
		Port:        defaultPort,
		Env:         EnvProduction,
		Storage:     StoragePostgres,
		DBStr:       defaultDBStr,
		MigratePath: defaultMigratePath,
		MongoURI:    defaultMongoURI,
		MongoDB:     defaultMongoDB,
		TokenTTL:    7 * 24 * time.Hour,
		ResetTTL:    time.Hour,
		AvatarDir:   defaultAvatarDir,
		RateLimit: RateLimitConfig{
			Capacity:       20,
			RefillInterval: 3 * time.Second,
			Prefix:         "taskflow:rl",
		},
	}
}

func (c *Config) Development() bool {
	return c.Env == EnvDevelopment
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// ReadConfig builds the configuration from defaults, an optional JSON file,
// the environment (including a .env file) and command line flags, each
// layer overriding the previous one.
func ReadConfig() *Config {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
	return cfg
}

func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("taskflow", flag.ContinueOnError)
	addr := fs.String("addr", defaultAddr, "server address")
	port := fs.Int("port", defaultPort, "server port")
	env := fs.String("env", EnvProduction, "runtime environment (development or production)")
	storage := fs.String("storage", StoragePostgres, "storage backend: postgres, mongo or memory")
	dbDsn := fs.String("dbdsn", "", "PostgreSQL DSN")
	migratePath := fs.String("migratepath", defaultMigratePath, "path to SQL migrations")
	configFile := fs.String("c", "", "path to JSON config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println("[WARN] Failed to load .env file:", err)
	}

	cfg := DefaultConfig()

	path := *configFile
	if path == "" {
		path = os.Getenv("CONFIG")
	}
	if path != "" {
		if err := applyJSONConfig(cfg, path); err != nil {
			log.Println("[WARN]", err)
		}
	}

	applyEnvOverrides(cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "port":
			cfg.Port = *port
		case "env":
			cfg.Env = *env
		case "storage":
			cfg.Storage = *storage
		case "dbdsn":
			cfg.DBStr = *dbDsn
		case "migratepath":
			cfg.MigratePath = *migratePath
		}
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", errors.ErrConfigInvalidFormat, c.Storage)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535: %d", errors.ErrConfigInvalidFormat, c.Port)
	}
	if c.JWTSecret == "" {
		if !c.Development() {
			return fmt.Errorf("%w: JWT_SECRET is required", errors.ErrConfigInvalidFormat)
		}
		c.JWTSecret = "development-secret"
		log.Println("[WARN] JWT_SECRET is not set, using an insecure development secret")
	}
	return nil
}

type jsonConfig struct {
	Addr        *string     `json:"addr"`
	Port        *int        `json:"port"`
	Env         *string     `json:"env"`
	Storage     *string     `json:"storage"`
	DBStr       *string     `json:"db_str"`
	MigratePath *string     `json:"migrate_path"`
	MongoURI    *string     `json:"mongo_uri"`
	MongoDB     *string     `json:"mongo_db"`
	TokenTTL    *string     `json:"token_ttl"`
	ResetTTL    *string     `json:"reset_code_ttl"`
	Timezone    *string     `json:"timezone"`
	AvatarDir   *string     `json:"avatar_dir"`
	PublicURL   *string     `json:"public_url"`
	SMTP        *SMTPConfig `json:"smtp"`
	S3          *S3Config   `json:"s3"`
	RedisAddr   *string     `json:"redis_addr"`
	CORSOrigins []string    `json:"cors_origins"`
}

func applyJSONConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w %s: %v", errors.ErrConfigFileReadFailed, path, err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConfigParseFailed, err)
	}

	setString(&cfg.Addr, jc.Addr)
	setString(&cfg.Env, jc.Env)
	setString(&cfg.Storage, jc.Storage)
	setString(&cfg.DBStr, jc.DBStr)
	setString(&cfg.MigratePath, jc.MigratePath)
	setString(&cfg.MongoURI, jc.MongoURI)
	setString(&cfg.MongoDB, jc.MongoDB)
	setString(&cfg.Timezone, jc.Timezone)
	setString(&cfg.AvatarDir, jc.AvatarDir)
	setString(&cfg.PublicURL, jc.PublicURL)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	if jc.Port != nil {
		cfg.Port = *jc.Port
	}
	if jc.TokenTTL != nil {
		setDuration(&cfg.TokenTTL, "token_ttl", *jc.TokenTTL)
	}
	if jc.ResetTTL != nil {
		setDuration(&cfg.ResetTTL, "reset_code_ttl", *jc.ResetTTL)
	}
	if jc.SMTP != nil {
		cfg.SMTP = *jc.SMTP
	}
	if jc.S3 != nil {
		cfg.S3 = *jc.S3
	}
	if jc.CORSOrigins != nil {
		cfg.CORSOrigins = jc.CORSOrigins
	}
	log.Println("[INFO] JSON config loaded from", path)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, name, raw string) {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("[WARN] %s in %s: %q", errors.ErrConfigInvalidFormat, name, raw)
		return
	}
	*dst = d
}

func setInt(dst *int, name, raw string) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[WARN] %s in %s: %q", errors.ErrConfigInvalidFormat, name, raw)
		return
	}
	*dst = n
}

func applyEnvOverrides(cfg *Config) {
	env := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	env("ADDR", &cfg.Addr)
	if v := os.Getenv("PORT"); v != "" {
		setInt(&cfg.Port, "PORT", v)
	}
	env("NODE_ENV", &cfg.Env)
	env("APP_ENV", &cfg.Env)
	env("STORAGE", &cfg.Storage)
	env("DB_STR", &cfg.DBStr)
	env("MIGRATE_PATH", &cfg.MigratePath)
	env("MONGO_URI", &cfg.MongoURI)
	env("MONGO_DB", &cfg.MongoDB)
	env("JWT_SECRET", &cfg.JWTSecret)
	env("APP_TIMEZONE", &cfg.Timezone)
	env("AVATAR_DIR", &cfg.AvatarDir)
	env("PUBLIC_URL", &cfg.PublicURL)
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		setDuration(&cfg.TokenTTL, "TOKEN_TTL", v)
	}
	if v := os.Getenv("RESET_CODE_TTL"); v != "" {
		setDuration(&cfg.ResetTTL, "RESET_CODE_TTL", v)
	}

	if cfg.DBStr == defaultDBStr {
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbName := os.Getenv("DB_NAME")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
			cfg.DBStr = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
		}
	}

	env("EMAIL_USER", &cfg.SMTP.Username)
	env("EMAIL_PASS", &cfg.SMTP.Password)
	env("SMTP_HOST", &cfg.SMTP.Host)
	env("SMTP_USER", &cfg.SMTP.Username)
	env("SMTP_PASS", &cfg.SMTP.Password)
	env("SMTP_FROM", &cfg.SMTP.From)
	if v := os.Getenv("SMTP_PORT"); v != "" {
		setInt(&cfg.SMTP.Port, "SMTP_PORT", v)
	}
	if cfg.SMTP.Host == "" && cfg.SMTP.Username != "" {
		cfg.SMTP.Host = defaultGmailHost
	}

	env("S3_BUCKET", &cfg.S3.Bucket)
	env("S3_REGION", &cfg.S3.Region)
	env("S3_ENDPOINT", &cfg.S3.Endpoint)
	env("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	env("S3_SECRET_KEY", &cfg.S3.SecretKey)
	env("S3_PUBLIC_URL", &cfg.S3.PublicURL)

	env("REDIS_ADDR", &cfg.RedisAddr)
	env("REDIS_PASSWORD", &cfg.RedisPass)
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("[WARN] %s in RATE_LIMIT_ENABLED: %q", errors.ErrConfigInvalidFormat, v)
		} else {
			cfg.RateLimit.Enabled = enabled
		}
	}
	if v := os.Getenv("RATE_LIMIT_CAPACITY"); v != "" {
		setInt(&cfg.RateLimit.Capacity, "RATE_LIMIT_CAPACITY", v)
	}
	if v := os.Getenv("RATE_LIMIT_INTERVAL"); v != "" {
		setDuration(&cfg.RateLimit.RefillInterval, "RATE_LIMIT_INTERVAL", v)
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
}
