package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/validator"
)

// Supported store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the provisioner
type Config struct {
	Environment string         `mapstructure:"environment" validate:"required"`
	LogLevel    string         `mapstructure:"logLevel"`
	LogFormat   string         `mapstructure:"logFormat" validate:"oneof=json console"`
	Database    DatabaseConfig `mapstructure:"database"`
	Clinics     []string       `mapstructure:"clinics" validate:"required,min=1,dive,clinicid"`
	Workers     int            `mapstructure:"workers" validate:"gte=1,lte=64"`
	Seed        SeedConfig     `mapstructure:"seed"`
	Metrics     struct {
		Enabled        bool   `mapstructure:"enabled"`
		PushgatewayURL string `mapstructure:"pushgatewayURL" validate:"omitempty,url"`
		Job            string `mapstructure:"job" validate:"required"`
	} `mapstructure:"metrics"`
	Notify struct {
		NatsURL string        `mapstructure:"natsURL"`
		Subject string        `mapstructure:"subject" validate:"required"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"notify"`
}

// DatabaseConfig selects and locates the relational store
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	PostgresDSN    string        `mapstructure:"postgresDSN" validate:"required_if=Driver postgres"`
	SchemaPrefix   string        `mapstructure:"schemaPrefix" validate:"omitempty,sqlident"`
	SQLiteDir      string        `mapstructure:"sqliteDir" validate:"required_if=Driver sqlite"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout"`
}

// SeedConfig controls the demo rows inserted by a provisioning run
type SeedConfig struct {
	AdminEmail    string `mapstructure:"adminEmail" validate:"required,email"`
	AdminPassword string `mapstructure:"adminPassword"`
	DemoContact   bool   `mapstructure:"demoContact"`
}

// LoadConfig reads configuration from file, environment variables and flags.
// flags may be nil.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "console")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.schemaPrefix", "clinic_")
	v.SetDefault("database.sqliteDir", "./data")
	v.SetDefault("database.connectTimeout", time.Minute)
	v.SetDefault("clinics", []string{"main"})
	v.SetDefault("workers", 1)
	v.SetDefault("seed.adminEmail", "admin@clinic.local")
	v.SetDefault("seed.demoContact", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.job", "clinic_schema_provisioner")
	v.SetDefault("notify.subject", "clinic.provisioning.completed")
	v.SetDefault("notify.timeout", 5*time.Second)

	// Config file settings
	v.SetConfigName("provisioner")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.clinic-schema-provisioner")
	v.AddConfigPath("/etc/clinic-schema-provisioner")

	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: error reading config file: %w", apperrors.ErrConfig, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		v.Set("database.driver", driver)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if password := os.Getenv("SEED_ADMIN_PASSWORD"); password != "" {
		v.Set("seed.adminPassword", password)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("notify.natsURL", url)
	}
	if clinics := os.Getenv("CLINICS"); clinics != "" {
		v.Set("clinics", splitList(clinics))
	}

	// Flags win over everything else, but only when explicitly set
	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrConfig, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: unable to decode config into struct: %w", apperrors.ErrConfig, err)
	}

	if err := validator.Validate(config); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConfig, err)
	}

	return &config, nil
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"driver":       "database.driver",
	"dsn":          "database.postgresDSN",
	"sqlite-dir":   "database.sqliteDir",
	"clinic":       "clinics",
	"workers":      "workers",
	"log-level":    "logLevel",
	"log-format":   "logFormat",
	"demo-contact": "seed.demoContact",
}

// bindFlags copies explicitly set flags into v as overrides.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}

		var (
			value interface{}
			err   error
		)
		switch f.Value.Type() {
		case "stringSlice":
			value, err = flags.GetStringSlice(name)
		case "int":
			value, err = flags.GetInt(name)
		case "bool":
			value, err = flags.GetBool(name)
		default:
			value = f.Value.String()
		}
		if err != nil {
			return fmt.Errorf("reading flag --%s: %w", name, err)
		}
		v.Set(key, value)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(parts, tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
