package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

func init() {
	godotenv.Load()
}

// poolSettings are read from DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME_SECONDS and DB_CONN_MAX_IDLE_TIME_SECONDS.
type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

func poolSettingsFromEnv() poolSettings {
	return poolSettings{
		maxOpen:     intFromEnv("DB_MAX_OPEN_CONNS", 20),
		maxIdle:     intFromEnv("DB_MAX_IDLE_CONNS", 10),
		maxLifetime: time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		maxIdleTime: time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
	}
}

// databaseDSN builds the MySQL DSN from DB_* env vars. Timestamps are read and written in UTC
// because documents are ordered by created_at.
func databaseDSN() string {
	cfg := mysqlDriver.NewConfig()
	cfg.User = os.Getenv("DB_USER")
	cfg.Passwd = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	host := os.Getenv("DB_HOST")
	if strings.HasPrefix(host, "/cloudsql/") {
		// Cloud SQL proxy socket
		cfg.Net = "unix"
		cfg.Addr = host
	} else {
		cfg.Net = "tcp"
		cfg.Addr = host + ":" + os.Getenv("DB_PORT")
	}
	return cfg.FormatDSN()
}

// ConnectDatabaseWithRetry blocks until MySQL answers, then installs the tracing and
// tenant guard plugins on the global handle.
func ConnectDatabaseWithRetry() {
	dsn := databaseDSN()
	for attempt := 1; ; attempt++ {
		conn, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger()})
		if err == nil {
			applyPool(conn, poolSettingsFromEnv())
			if pluginErr := conn.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			if pluginErr := conn.Use(NewTenantGuardPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install tenant guard plugin: %v", pluginErr)
			}
			db = conn
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := backoff(attempt)
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func applyPool(conn *gorm.DB, pool poolSettings) {
	sqlDB, err := conn.DB()
	if err != nil || sqlDB == nil {
		return
	}
	if pool.maxOpen > 0 {
		sqlDB.SetMaxOpenConns(pool.maxOpen)
	}
	if pool.maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(pool.maxIdle)
	}
	if pool.maxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.maxLifetime)
	}
	if pool.maxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.maxIdleTime)
	}
}

// backoff doubles per attempt and caps at 30s.
func backoff(attempt int) time.Duration {
	return min(time.Second<<min(attempt, 5), 30*time.Second)
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// gormLogger logs slow statements and errors. DB_LOG_LEVEL=warn|info raises verbosity.
func gormLogger() logger.Interface {
	level := logger.Error
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DB_LOG_LEVEL"))) {
	case "silent":
		level = logger.Silent
	case "warn":
		level = logger.Warn
	case "info":
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			LogLevel:                  level,
			SlowThreshold:             500 * time.Millisecond,
			IgnoreRecordNotFoundError: true,
		},
	)
}
