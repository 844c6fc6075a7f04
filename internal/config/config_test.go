package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "imcitrack", cfg.MongoDatabase)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 72*time.Hour, cfg.DraftTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.True(t, cfg.IsDev())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MONGO_URI", "mongodb://mongo:27017")
	t.Setenv("DRAFT_TTL", "2h")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "mongodb://mongo:27017", cfg.MongoURI)
	assert.Equal(t, 2*time.Hour, cfg.DraftTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)
}

func TestValidate(t *testing.T) {
	valid := Config{
		MongoURI: "mongodb://localhost", MongoDatabase: "x", LogLevel: "info",
		CacheTTL: time.Hour, DraftTTL: time.Hour,
	}
	require.NoError(t, valid.Validate())

	noMongo := valid
	noMongo.MongoURI = ""
	assert.Error(t, noMongo.Validate())

	badLevel := valid
	badLevel.LogLevel = "loud"
	assert.Error(t, badLevel.Validate())

	noTTL := valid
	noTTL.DraftTTL = 0
	assert.Error(t, noTTL.Validate())
}
