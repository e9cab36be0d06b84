package config

import (
	"os"
	"strconv"
)

type R2 struct {
	AccountID     string
	AccessKey     string
	SecretKey     string
	BucketName    string
	PublicBaseURL string
}

type LinkedIn struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AccessToken  string
	ProfileURN   string
}

type Providers struct {
	GeminiAPIKey  string
	GeminiModel   string
	NvidiaAPIKey  string
	NvidiaBaseURL string
	NvidiaModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
}

type SMTP struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type Config struct {
	PostgresURI              string
	SQLitePath               string
	DataDir                  string
	AllowFileFallback        bool
	RedisURI                 string
	SecretKey                string
	CookieName               string
	FrontendURL              string
	LinkedIn                 LinkedIn
	Providers                Providers
	SerperAPIKey             string
	HFToken                  string
	HFImageModel             string
	R2                       R2
	SMTP                     SMTP
	SchedulerEnabled         bool
	SchedulerPollSeconds     int
	SchedulerBatchSize       int
	AutomationMaxUsersPerRun int
	AutomationSkipImage      bool
	AutomationVisibility     string
	LogRetentionPerUser      int
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:       getEnv("POSTGRES_URI", ""),
		SQLitePath:        getEnv("SQLITE_PATH", ""),
		DataDir:           getEnv("DATA_DIR", "data"),
		AllowFileFallback: getEnvBool("PERSISTENCE_ALLOW_FILE_FALLBACK", false),
		RedisURI:          getEnv("REDIS_URI", ""),
		SecretKey:         getEnv("SECRET_KEY", ""),
		CookieName:        getEnv("COOKIE_NAME", "synovora_session"),
		FrontendURL:       getEnv("FRONTEND_URL", "http://localhost:5173"),
		LinkedIn: LinkedIn{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("LINKEDIN_REDIRECT_URI", "http://localhost:3000/auth/callback"),
			AccessToken:  getEnv("LINKEDIN_TOKEN", ""),
			ProfileURN:   getEnv("PROFILE_URN", ""),
		},
		Providers: Providers{
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			NvidiaAPIKey:  getEnv("NVIDIA_API_KEY", ""),
			NvidiaBaseURL: getEnv("NVIDIA_BASE_URL", ""),
			NvidiaModel:   getEnv("NVIDIA_MODEL", "meta/llama-3.1-70b-instruct"),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		SerperAPIKey: getEnv("SERPER_API_KEY", ""),
		HFToken:      getEnv("HF_TOKEN", ""),
		HFImageModel: getEnv("HF_IMAGE_MODEL", "black-forest-labs/FLUX.1-dev"),
		R2: R2{
			AccountID:     getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:     getEnv("R2_ACCESS_KEY", ""),
			SecretKey:     getEnv("R2_SECRET_KEY", ""),
			BucketName:    getEnv("R2_BUCKET_NAME", ""),
			PublicBaseURL: getEnv("R2_PUBLIC_BASE_URL", ""),
		},
		SMTP: SMTP{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnv("SMTP_PORT", "587"),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("EMAIL_FROM", ""),
		},
		SchedulerEnabled:         getEnvBool("SCHEDULER_ENABLED", true),
		SchedulerPollSeconds:     getEnvInt("SCHEDULER_POLL_SECONDS", 20),
		SchedulerBatchSize:       getEnvInt("SCHEDULER_BATCH_SIZE", 10),
		AutomationMaxUsersPerRun: getEnvInt("AUTOMATION_MAX_USERS_PER_RUN", 1),
		AutomationSkipImage:      getEnvBool("AUTOMATION_SKIP_IMAGE", false),
		AutomationVisibility:     getEnv("AUTOMATION_PUBLISH_VISIBILITY", "PUBLIC"),
		LogRetentionPerUser:      getEnvInt("AUTOMATION_LOG_RETENTION", 50),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
