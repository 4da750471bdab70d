package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the haulage v1 config file. Only the custom section carries
// database settings; the migration section is optional.
type File struct {
	Custom struct {
		DBLocation string `yaml:"dbLocation"`
		DBUser     string `yaml:"dbUser"`
		DBPass     string `yaml:"dbPass"`
	} `yaml:"custom"`
	Migration struct {
		IMSIStem     string `yaml:"imsiStem"`
		AddressBlock string `yaml:"addressBlock"`
	} `yaml:"migration"`
}

type Config struct {
	// Postgres target, named by the config file.
	DBName     string
	DBUser     string
	DBPassword string
	PGHost     string
	PGPort     string

	// Legacy mysql source. Name/user/password default to the target's
	// values unless overridden on the command line.
	MySQLHost string
	MySQLPort string

	// Live-session document store.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Address plan.
	IMSIStem     string
	AddressBlock string

	LogFile       string
	LogLevel      string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
}

// Load reads the haulage config file at path, then applies environment
// overrides. A .env file is honored if present.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("unable to parse config file %s: %w", path, err)
	}
	if file.Custom.DBLocation == "" || file.Custom.DBUser == "" {
		return nil, fmt.Errorf("unable to read database information from config file %s", path)
	}

	_ = godotenv.Load()

	cfg := &Config{
		DBName:          file.Custom.DBLocation,
		DBUser:          file.Custom.DBUser,
		DBPassword:      file.Custom.DBPass,
		PGHost:          getEnv("PG_HOST", "127.0.0.1"),
		PGPort:          getEnv("PG_PORT", "5432"),
		MySQLHost:       getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:       getEnv("MYSQL_PORT", "3306"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017/"),
		MongoDatabase:   getEnv("MONGO_DB", "open5gs"),
		MongoCollection: getEnv("MONGO_COLLECTION", "subscribers"),
		IMSIStem:        file.Migration.IMSIStem,
		AddressBlock:    file.Migration.AddressBlock,
		LogFile:         getEnv("LOG_FILE", "haulage-migrate.log"),
		LogLevel:        getEnv("LOG_LEVEL", "debug"),
		LogMaxSize:      getEnvAsInt("LOG_MAX_SIZE", 10),
		LogMaxBackups:   getEnvAsInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:       getEnvAsInt("LOG_MAX_AGE", 28),
	}

	if cfg.IMSIStem == "" {
		cfg.IMSIStem = getEnv("IMSI_STEM", "91054000")
	}
	if cfg.AddressBlock == "" {
		cfg.AddressBlock = getEnv("ADDRESS_BLOCK", "10.45.1.0/16")
	}

	return cfg, nil
}

// PostgresURL is the target store connection string.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.DBUser, c.DBPassword, c.PGHost, c.PGPort, c.DBName)
}

// MySQLDSN is the source store connection string for the given overrides.
func (c *Config) MySQLDSN(name, user, pass string) string {
	if name == "" {
		name = c.DBName
	}
	if user == "" {
		user = c.DBUser
	}
	if pass == "" {
		pass = c.DBPassword
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", user, pass, c.MySQLHost, c.MySQLPort, name)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}
