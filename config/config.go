package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OSS      OSSConfig      `mapstructure:"oss"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Email    EmailConfig    `mapstructure:"email"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	Plans    []PlanConfig   `mapstructure:"plans"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Guest    GuestConfig    `mapstructure:"guest"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, sqlite
	Path         string `mapstructure:"path"`   // sqlite 文件路径
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
}

type OAuthConfig struct {
	Github GithubOAuthConfig `mapstructure:"github"`
}

type GithubOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// PlanConfig 启动时写入的套餐
type PlanConfig struct {
	Name       string  `mapstructure:"name"`
	DailyLimit int     `mapstructure:"daily_limit"`
	Price      float64 `mapstructure:"price"`
	Currency   string  `mapstructure:"currency"`
}

type BillingConfig struct {
	DefaultPlan string `mapstructure:"default_plan"` // 免费套餐名称
	PeriodDays  int    `mapstructure:"period_days"`  // 付费订阅有效天数
	Provider    string `mapstructure:"provider"`
	Currency    string `mapstructure:"currency"`
}

type GuestConfig struct {
	TTLHours   int `mapstructure:"ttl_hours"`
	DailyLimit int `mapstructure:"daily_limit"`
}

type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`           // 最大文件大小（字节），0 表示不限制
	Dir               string   `mapstructure:"dir"`                // 本地存储目录
	Storage           string   `mapstructure:"storage"`            // local, oss
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 为空表示不限制
	OrphanExpireHours int      `mapstructure:"orphan_expire_hours"`
}

type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// DefaultPlans 默认套餐目录
func DefaultPlans() []PlanConfig {
	return []PlanConfig{
		{Name: "Standard", DailyLimit: 1, Price: 0, Currency: "EUR"},
		{Name: "Silver", DailyLimit: 3, Price: 9.99, Currency: "EUR"},
		{Name: "Gold", DailyLimit: 5, Price: 19.99, Currency: "EUR"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "audiosep.db")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("billing.default_plan", "Standard")
	v.SetDefault("billing.period_days", 30)
	v.SetDefault("billing.provider", "simulated")
	v.SetDefault("billing.currency", "EUR")
	v.SetDefault("guest.ttl_hours", 24)
	v.SetDefault("guest.daily_limit", 1)
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.storage", "local")
	v.SetDefault("upload.orphan_expire_hours", 24)
}

func Load(configPath string) (*Config, error) {
	// .env 可选，只用于本地开发
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.Plans) == 0 {
		cfg.Plans = DefaultPlans()
	}
	for i := range cfg.Plans {
		if cfg.Plans[i].Currency == "" {
			cfg.Plans[i].Currency = cfg.Billing.Currency
		}
	}

	return &cfg, nil
}
