package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the optional YAML file layered under the environment.
const EnvConfigPath = "SKRINING_CONFIG"

// Config is the full runtime configuration. Values come from defaults, then
// the optional YAML file, then environment variables.
type Config struct {
	Portal    Portal      `yaml:"portal"`
	Browser   Browser     `yaml:"browser"`
	Geocode   Geocode     `yaml:"geocode"`
	LogStore  LogStore    `yaml:"logstore"`
	Lock      Lock        `yaml:"lock"`
	Normalize Normalize   `yaml:"normalize"`
	Batch     Batch       `yaml:"batch"`
	Status    Status      `yaml:"status"`
	Kafka     Kafka       `yaml:"kafka"`
	Redis     RedisConfig `yaml:"redis"`
	Log       Log         `yaml:"log"`
}

// Portal describes the screening portal and how to drive its form.
type Portal struct {
	BaseURL        string            `yaml:"base_url"`
	LoginPath      string            `yaml:"login_path"`
	FormPath       string            `yaml:"form_path"`
	Username       string            `yaml:"-"`
	Password       string            `yaml:"-"`
	Selectors      map[string]string `yaml:"selectors"`
	Defaults       map[string]string `yaml:"defaults"`
	SuccessTimeout time.Duration     `yaml:"success_timeout"`
	PollInterval   time.Duration     `yaml:"poll_interval"`
	MaxAlertCycles int               `yaml:"max_alert_cycles"`
	MaxOpenPages   int               `yaml:"max_open_pages"`
}

// Browser configures the automation browser.
type Browser struct {
	ProfileDir string `yaml:"profile_dir"`
	ExecPath   string `yaml:"exec_path"`
	Headless   bool   `yaml:"headless"`
}

// Geocode configures the provider chain and its cache.
type Geocode struct {
	CacheDir       string        `yaml:"cache_dir"`
	LocationIQURL  string        `yaml:"locationiq_url"`
	LocationIQKeys []string      `yaml:"locationiq_keys"`
	NominatimURL   string        `yaml:"nominatim_url"`
	UserAgent      string        `yaml:"user_agent"`
	CountryCode    string        `yaml:"country_code"`
	Delay          time.Duration `yaml:"delay"`
	Timeout        time.Duration `yaml:"timeout"`
}

// LogStore selects and configures the outcome log backend.
type LogStore struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"-"`
	Table       string `yaml:"table"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// Lock configures entity lock files.
type Lock struct {
	Dir        string        `yaml:"dir"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// Normalize holds enrichment fallbacks.
type Normalize struct {
	// ExamMonth is YYYY-MM; empty means the current month.
	ExamMonth       string `yaml:"exam_month"`
	DefaultProvince string `yaml:"default_province"`
	DefaultRegency  string `yaml:"default_regency"`
	DefaultDistrict string `yaml:"default_district"`
}

// Batch configures the record loop.
type Batch struct {
	Retries       int    `yaml:"retries"`
	ScreenshotDir string `yaml:"screenshot_dir"`
}

// Status configures the read-only status server. Empty Addr disables it.
type Status struct {
	Addr string `yaml:"addr"`
}

// Kafka configures outcome publishing. No brokers disables it.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RedisConfig configures the shared redis client.
type RedisConfig struct {
	URL          string        `yaml:"-"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Portal: Portal{
			LoginPath:      "/login",
			FormPath:       "/skrining/create",
			SuccessTimeout: 3 * time.Minute,
			PollInterval:   time.Second,
			MaxAlertCycles: 3,
			MaxOpenPages:   3,
		},
		Browser: Browser{ProfileDir: ".browser-profile", Headless: true},
		Geocode: Geocode{
			CacheDir:      ".cache/geocode",
			LocationIQURL: "https://us1.locationiq.com/v1/search",
			NominatimURL:  "https://nominatim.openstreetmap.org/search",
			UserAgent:     "skrining/1.0",
			CountryCode:   "id",
			Delay:         time.Second,
			Timeout:       15 * time.Second,
		},
		LogStore: LogStore{
			Driver:      "sqlite",
			SQLitePath:  "logs.db",
			Table:       "submission_logs",
			RedisPrefix: "skrining:log:",
		},
		Lock:  Lock{Dir: ".locks"},
		Batch: Batch{Retries: 3},
		Kafka: Kafka{Topic: "skrining.outcomes"},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// FromEnv loads the configuration so main stays lean.
func FromEnv() (Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes a YAML config file over the defaults without consulting
// the environment.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}

	str("PORTAL_BASE_URL", &c.Portal.BaseURL)
	str("PORTAL_USERNAME", &c.Portal.Username)
	str("PORTAL_PASSWORD", &c.Portal.Password)
	dur("PORTAL_SUCCESS_TIMEOUT", &c.Portal.SuccessTimeout)

	str("BROWSER_PROFILE_DIR", &c.Browser.ProfileDir)
	str("BROWSER_EXEC_PATH", &c.Browser.ExecPath)
	flag("BROWSER_HEADLESS", &c.Browser.Headless)

	str("GEOCODE_CACHE_DIR", &c.Geocode.CacheDir)
	list("LOCATIONIQ_KEYS", &c.Geocode.LocationIQKeys)
	str("NOMINATIM_URL", &c.Geocode.NominatimURL)
	dur("GEOCODE_DELAY", &c.Geocode.Delay)

	str("LOGSTORE_DRIVER", &c.LogStore.Driver)
	str("LOGSTORE_SQLITE_PATH", &c.LogStore.SQLitePath)
	str("DATABASE_URL", &c.LogStore.PostgresDSN)
	str("LOGSTORE_TABLE", &c.LogStore.Table)

	str("LOCK_DIR", &c.Lock.Dir)
	dur("LOCK_STALE_AFTER", &c.Lock.StaleAfter)

	str("EXAM_MONTH", &c.Normalize.ExamMonth)
	str("DEFAULT_PROVINCE", &c.Normalize.DefaultProvince)
	str("DEFAULT_REGENCY", &c.Normalize.DefaultRegency)
	str("DEFAULT_DISTRICT", &c.Normalize.DefaultDistrict)

	num("BATCH_RETRIES", &c.Batch.Retries)
	str("SCREENSHOT_DIR", &c.Batch.ScreenshotDir)

	str("STATUS_ADDR", &c.Status.Addr)

	list("KAFKA_BROKERS", &c.Kafka.Brokers)
	str("KAFKA_TOPIC", &c.Kafka.Topic)

	str("REDIS_URL", &c.Redis.URL)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Month parses ExamMonth, falling back to the month of now.
func (n Normalize) Month(now time.Time) (time.Time, error) {
	if n.ExamMonth == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	}
	t, err := time.ParseInLocation("2006-01", n.ExamMonth, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("exam month %q: %w", n.ExamMonth, err)
	}
	return t, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
