package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerAddr(t *testing.T) {
	cfg := Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "5000"
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr())
}

func TestGetDSN(t *testing.T) {
	cfg := Config{}
	cfg.Database.Type = "sqlite"
	cfg.Database.SQLite.Path = "./data/test.db"
	assert.Equal(t, "./data/test.db", cfg.GetDSN())

	cfg.Database.Type = "postgres"
	cfg.Database.Postgres = PostgresConfig{
		Host: "db", Port: 5432, Username: "u", Password: "p",
		Database: "clouddisk", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=clouddisk sslmode=disable",
		cfg.GetDSN())

	cfg.Database.Type = "oracle"
	assert.Equal(t, "", cfg.GetDSN())
}
