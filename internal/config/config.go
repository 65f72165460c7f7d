package config

import (
	"errors"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreBackendMongo     = "mongo"
	StoreBackendFirestore = "firestore"
	StoreBackendPostgres  = "postgres"
	StoreBackendDynamo    = "dynamodb"
	StoreBackendMemory    = "memory"
)

// Upload providers accepted by UPLOAD_PROVIDER.
const (
	UploadProviderCloudinary = "cloudinary"
	UploadProviderGCS        = "gcs"
)

type Config struct {
	Port    string
	GinMode string

	// Upstream model API
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	UpstreamTimeoutSeconds int

	Models *ModelsConfig `yaml:"models"`

	// Conversation store
	StoreBackend string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime int // in minutes
	DBConnMaxLifetime int // in minutes

	FirebaseProjectID   string
	FirebaseCredJSON    string
	FirestoreCollection string

	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string // local DynamoDB only

	StoreTimeoutSeconds int

	// Image upload
	UploadProvider      string
	UploadFolder        string
	UploadMaxBytes      int64
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	GCSBucket           string
	GCSCredJSON         string

	// Server
	ServerShutdownTimeoutSeconds int
	CORSAllowedOrigins           string
	MetricsEnabled               bool

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads .env (when present), the environment and the YAML config file.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:    getEnvOrDefault("PORT", "5050"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		OpenAIAPIKey:           getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:          getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		UpstreamTimeoutSeconds: getEnvAsInt("UPSTREAM_TIMEOUT_SECONDS", 120),

		StoreBackend: strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreBackendMongo)),

		MongoURI:        getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnvOrDefault("MONGO_DATABASE", "chat"),
		MongoCollection: getEnvOrDefault("MONGO_COLLECTION", "conversations"),

		DatabaseURL:       getEnvOrDefault("DATABASE_URL", "postgres://localhost/chat?sslmode=disable"),
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 15),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdleTime: getEnvAsInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 1),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		FirebaseProjectID:   getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
		FirebaseCredJSON:    getEnvOrDefault("FIREBASE_CRED_JSON", ""),
		FirestoreCollection: getEnvOrDefault("FIRESTORE_COLLECTION", "conversations"),

		DynamoTable:    getEnvOrDefault("DYNAMO_TABLE", "Conversations"),
		DynamoRegion:   getEnvOrDefault("AWS_REGION", "us-east-1"),
		DynamoEndpoint: getEnvOrDefault("DYNAMO_ENDPOINT", ""),

		StoreTimeoutSeconds: getEnvAsInt("STORE_TIMEOUT_SECONDS", 10),

		UploadProvider:      strings.ToLower(getEnvOrDefault("UPLOAD_PROVIDER", UploadProviderCloudinary)),
		UploadFolder:        getEnvOrDefault("UPLOAD_FOLDER", "chatgpt_images"),
		UploadMaxBytes:      getEnvAsInt64("UPLOAD_MAX_BYTES", 10<<20),
		CloudinaryCloudName: getEnvOrDefault("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnvOrDefault("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnvOrDefault("CLOUDINARY_API_SECRET", ""),
		GCSBucket:           getEnvOrDefault("GCS_BUCKET", ""),
		GCSCredJSON:         getEnvOrDefault("GCS_CRED_JSON", ""),

		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),
		CORSAllowedOrigins:           getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),
		MetricsEnabled:               getEnvOrDefault("METRICS_ENABLED", "true") == "true",

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	configFile, err := os.Open(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("Config file %s not found, using built-in model defaults", configFilePath)
	case err != nil:
		return nil, err
	default:
		defer configFile.Close()
		log.Printf("Loading config file: %v", configFilePath)
		if err := LoadConfigFile(configFile, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Models == nil {
		cfg.Models = DefaultModelsConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OpenAI API key is missing. Please set OPENAI_API_KEY environment variable.")
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail late, at first use.
func (cfg *Config) Validate() error {
	switch cfg.StoreBackend {
	case StoreBackendMongo, StoreBackendFirestore, StoreBackendPostgres, StoreBackendDynamo, StoreBackendMemory:
	default:
		return errors.New("STORE_BACKEND must be one of mongo, firestore, postgres, dynamodb, memory")
	}

	switch cfg.UploadProvider {
	case UploadProviderCloudinary, UploadProviderGCS:
	default:
		return errors.New("UPLOAD_PROVIDER must be either 'cloudinary' or 'gcs'")
	}

	if cfg.StoreBackend == StoreBackendFirestore && cfg.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required for the firestore store backend")
	}

	if cfg.Models == nil {
		return errors.New("models configuration is empty")
	}

	return cfg.Models.Validate()
}

// UpstreamTimeout is the deadline for one upstream completion call.
func (cfg *Config) UpstreamTimeout() time.Duration {
	return time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second
}

// StoreTimeout is the deadline for one store round trip.
func (cfg *Config) StoreTimeout() time.Duration {
	return time.Duration(cfg.StoreTimeoutSeconds) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int64, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

// LoadConfigFile decodes YAML settings into config.
func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	return nil
}
