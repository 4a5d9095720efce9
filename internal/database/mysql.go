package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}

// buildMySQLDSN assembles a driver DSN. Expiry columns are compared against UTC clocks, so
// parseTime is always on and the session location stays UTC unless an option overrides it.
func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("mysql configuration requires user and database name")
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	dsnCfg := mysqldriver.NewConfig()
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	dsnCfg.DBName = cfg.Name
	dsnCfg.ParseTime = true
	dsnCfg.Params = map[string]string{"charset": "utf8mb4"}

	dsn := dsnCfg.FormatDSN()
	if len(cfg.Options) == 0 {
		return dsn, nil
	}

	// Extra options go through the driver's parser so typed keys (tls, timeouts) are validated.
	query := url.Values{}
	for key, value := range cfg.Options {
		query.Set(key, value)
	}
	parsed, err := mysqldriver.ParseDSN(dsn + "&" + query.Encode())
	if err != nil {
		return "", fmt.Errorf("mysql options: %w", err)
	}
	return parsed.FormatDSN(), nil
}
