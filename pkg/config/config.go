package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"

	AIProviderOpenAI   = "openai"
	AIProviderGigaChat = "gigachat"
	AIProviderNone     = "none"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	JWT      JWTConfig
	AI       AIConfig
	Upload   UploadConfig
	Queue    QueueConfig
	Admin    AdminConfig
	CORS     CORSConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns a libpq style connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type StorageConfig struct {
	Backend string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

type AIConfig struct {
	Provider          string
	RequestTimeout    time.Duration
	MaxImageDimension int
	MaxPDFPages       int
	OpenAI            OpenAIConfig
	GigaChat          GigaChatConfig
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	Model              string
	InsecureSkipVerify bool
}

type UploadConfig struct {
	Dir               string
	MaxFileSize       int64
	MaxInlineFileSize int64
	ProcessingDelay   time.Duration
}

type QueueConfig struct {
	Workers      int
	BufferSize   int
	MaxAttempts  int
	RetryBackoff time.Duration
	Retention    time.Duration
}

type AdminConfig struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type CORSConfig struct {
	AllowOrigins string
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work the same way
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "5000"),
			ReadTimeout:     getEnvSeconds("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:    getEnvSeconds("SERVER_WRITE_TIMEOUT", 30),
			ShutdownTimeout: getEnvSeconds("SERVER_SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "lifetrack"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendPostgres)),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
			RefreshExp: time.Duration(getEnvInt("JWT_REFRESH_EXPIRATION_HOURS", 168)) * time.Hour,
		},
		AI: AIConfig{
			Provider:          strings.ToLower(getEnv("AI_PROVIDER", AIProviderOpenAI)),
			RequestTimeout:    getEnvSeconds("AI_REQUEST_TIMEOUT", 120),
			MaxImageDimension: getEnvInt("AI_MAX_IMAGE_DIMENSION", 2048),
			MaxPDFPages:       getEnvInt("AI_MAX_PDF_PAGES", 4),
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o"),
			},
			GigaChat: GigaChatConfig{
				APIKey:             getEnv("GIGACHAT_API_KEY", ""),
				Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
				Model:              getEnv("GIGACHAT_MODEL", "GigaChat"),
				InsecureSkipVerify: getEnvBool("GIGACHAT_INSECURE_SKIP_VERIFY", true),
			},
		},
		Upload: UploadConfig{
			Dir:               getEnv("UPLOAD_DIR", "uploads"),
			MaxFileSize:       int64(getEnvInt("UPLOAD_MAX_FILE_SIZE_MB", 100)) << 20,
			MaxInlineFileSize: int64(getEnvInt("UPLOAD_MAX_INLINE_FILE_SIZE_MB", 10)) << 20,
			ProcessingDelay:   getEnvDuration("UPLOAD_PROCESSING_DELAY", 2*time.Second),
		},
		Queue: QueueConfig{
			Workers:      getEnvInt("QUEUE_WORKERS", 4),
			BufferSize:   getEnvInt("QUEUE_BUFFER_SIZE", 256),
			MaxAttempts:  getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
			RetryBackoff: getEnvDuration("QUEUE_RETRY_BACKOFF", 5*time.Second),
			Retention:    getEnvDuration("QUEUE_RETENTION", time.Hour),
		},
		Admin: AdminConfig{
			Email:     getEnv("ADMIN_EMAIL", ""),
			Password:  getEnv("ADMIN_PASSWORD", ""),
			FirstName: getEnv("ADMIN_FIRST_NAME", "System"),
			LastName:  getEnv("ADMIN_LAST_NAME", "Administrator"),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageBackendPostgres, StorageBackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.AI.Provider {
	case AIProviderOpenAI, AIProviderGigaChat, AIProviderNone:
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}

	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue workers must be positive, got %d", c.Queue.Workers)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue max attempts must be positive, got %d", c.Queue.MaxAttempts)
	}
	if c.Upload.MaxFileSize <= 0 || c.Upload.MaxInlineFileSize <= 0 {
		return fmt.Errorf("upload size limits must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
