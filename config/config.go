package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 保存剪辑服务的全部配置。
// 所有字段都可以通过环境变量（或 .env 文件）覆盖。
type Config struct {
	// 本地资源目录，字体 / m3u8 / 素材包都会落在这里
	AssetRoot string
	// 结构化缓存后端: sqlite, mysql, gorm, redis
	AssetDB    string
	SQLitePath string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	// AssetCacheTTL Redis 资源缓存过期时间，0 表示不过期
	AssetCacheTTL time.Duration

	// MinIO配置，资源桶可选
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string

	// 网络拉取
	FetchTimeout time.Duration
	FetchRate    float64 // 每秒请求数，0 表示不限速
	FetchBurst   int

	// 素材包安装等待上限，0 表示一直等待
	InstallTimeout time.Duration

	// 时间线参数
	TimelineWidth    int
	TimelineHeight   int
	TimelineFPS      int
	AudioSampleRate  int
	AudioChannels    int
	FrameGrabTimeout time.Duration
	CanvasID         string

	ServerAddr string
	JWTSecret  string

	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "2m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	assetRoot := getEnv("ASSET_ROOT", "assets")

	return &Config{
		AssetRoot:  assetRoot,
		AssetDB:    getEnv("ASSET_DB", "sqlite"),
		SQLitePath: getEnv("SQLITE_PATH", filepath.Join("data", "assets.db")),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "clipforge"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		AssetCacheTTL: getEnvDuration("ASSET_CACHE_TTL", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "clipforge-assets"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),
		MinioRegion:    getEnv("MINIO_REGION", ""),

		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchRate:    getEnvFloat("FETCH_RATE", 0),
		FetchBurst:   getEnvInt("FETCH_BURST", 4),

		InstallTimeout: getEnvDuration("INSTALL_TIMEOUT", 60*time.Second),

		TimelineWidth:    getEnvInt("TIMELINE_WIDTH", 1080),
		TimelineHeight:   getEnvInt("TIMELINE_HEIGHT", 1920),
		TimelineFPS:      getEnvInt("TIMELINE_FPS", 25),
		AudioSampleRate:  getEnvInt("AUDIO_SAMPLE_RATE", 44100),
		AudioChannels:    getEnvInt("AUDIO_CHANNELS", 2),
		FrameGrabTimeout: getEnvDuration("FRAME_GRAB_TIMEOUT", 5*time.Second),
		CanvasID:         getEnv("CANVAS_ID", "live-window"),

		ServerAddr: getEnv("SERVER_ADDR", ":8090"),
		JWTSecret:  getEnv("JWT_SECRET", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
