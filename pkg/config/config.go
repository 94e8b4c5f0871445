package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Payroll  PayrollConfig
	Approval ApprovalConfig
	Jobs     JobsConfig
	Cache    CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PayrollConfig carries the business constants the computation engine treats
// as injected parameters rather than hard-coded values.
type PayrollConfig struct {
	WorkingDaysPerMonth    int
	DefaultWorkHoursPerDay int

	// Attendance classification thresholds, "HH:MM" local time.
	OnTimeCutoff  string
	AbsenceCutoff string

	// Night differential window.
	NightStart string
	NightEnd   string

	// Premium multipliers applied on top of the hourly rate.
	OvertimeMultiplier float64
	NightDiffFactor    float64
	HolidayMultiplier  float64

	// LeaveWorkweekDays controls leave day counting: 6 excludes Sunday only,
	// 5 excludes the whole weekend. Intentionally independent from
	// WorkingDaysPerMonth; the two constants disagree upstream and
	// reconciling them is a stakeholder decision, not an engine default.
	LeaveWorkweekDays int
}

// ApprovalConfig maps requester roles to their ordered approver chains.
type ApprovalConfig struct {
	Chains map[string][]string
}

// JobsConfig tunes the background recomputation queue.
type JobsConfig struct {
	RecomputeWorkers int
	RecomputeRetries int
	RetryDelay       time.Duration
}

// CacheConfig governs period summary caching.
type CacheConfig struct {
	Enabled    bool
	SummaryTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Payroll = PayrollConfig{
		WorkingDaysPerMonth:    v.GetInt("PAYROLL_WORKING_DAYS_PER_MONTH"),
		DefaultWorkHoursPerDay: v.GetInt("PAYROLL_DEFAULT_WORK_HOURS"),
		OnTimeCutoff:           v.GetString("ATTENDANCE_ONTIME_CUTOFF"),
		AbsenceCutoff:          v.GetString("ATTENDANCE_ABSENCE_CUTOFF"),
		NightStart:             v.GetString("PAYROLL_NIGHT_START"),
		NightEnd:               v.GetString("PAYROLL_NIGHT_END"),
		OvertimeMultiplier:     v.GetFloat64("PAYROLL_OVERTIME_MULTIPLIER"),
		NightDiffFactor:        v.GetFloat64("PAYROLL_NIGHT_DIFF_FACTOR"),
		HolidayMultiplier:      v.GetFloat64("PAYROLL_HOLIDAY_MULTIPLIER"),
		LeaveWorkweekDays:      v.GetInt("LEAVE_WORKWEEK_DAYS"),
	}

	cfg.Approval = ApprovalConfig{Chains: parseChains(v.GetString("APPROVAL_CHAINS"))}

	cfg.Jobs = JobsConfig{
		RecomputeWorkers: v.GetInt("JOBS_RECOMPUTE_WORKERS"),
		RecomputeRetries: v.GetInt("JOBS_RECOMPUTE_RETRIES"),
		RetryDelay:       parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("ENABLE_CACHE"),
		SummaryTTL: parseDuration(v.GetString("CACHE_SUMMARY_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "bayani_payroll")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PAYROLL_WORKING_DAYS_PER_MONTH", 22)
	v.SetDefault("PAYROLL_DEFAULT_WORK_HOURS", 8)
	v.SetDefault("ATTENDANCE_ONTIME_CUTOFF", "09:00")
	v.SetDefault("ATTENDANCE_ABSENCE_CUTOFF", "13:30")
	v.SetDefault("PAYROLL_NIGHT_START", "22:00")
	v.SetDefault("PAYROLL_NIGHT_END", "06:00")
	v.SetDefault("PAYROLL_OVERTIME_MULTIPLIER", 1.25)
	v.SetDefault("PAYROLL_NIGHT_DIFF_FACTOR", 0.10)
	v.SetDefault("PAYROLL_HOLIDAY_MULTIPLIER", 1.0)
	v.SetDefault("LEAVE_WORKWEEK_DAYS", 6)

	v.SetDefault("APPROVAL_CHAINS", "employee:supervisor>hr_staff>hr_head;supervisor:hr_staff>hr_head;hr_staff:hr_head;hr_head:admin")

	v.SetDefault("JOBS_RECOMPUTE_WORKERS", 2)
	v.SetDefault("JOBS_RECOMPUTE_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "1s")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_SUMMARY_TTL", "5m")
}

// parseChains decodes "requester:role>role;requester:role" into chain lists.
func parseChains(raw string) map[string][]string {
	chains := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		requester := strings.TrimSpace(parts[0])
		var chain []string
		for _, role := range strings.Split(parts[1], ">") {
			role = strings.TrimSpace(role)
			if role != "" {
				chain = append(chain, role)
			}
		}
		if requester != "" && len(chain) > 0 {
			chains[requester] = chain
		}
	}
	return chains
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
