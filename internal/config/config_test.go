package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, RecomputeInline, cfg.Recompute.Mode)
	assert.Equal(t, 2, cfg.Recompute.Workers)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_KafkaBrokers(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RATING_RECOMPUTE", RecomputeEvents)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.KafkaEnabled())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:     Store{Driver: StoreMemory},
			Auth:      Auth{JWTSecret: testSecret},
			Recompute: Recompute{Mode: RecomputeInline, Workers: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mongo" }, wantErr: "STORE_DRIVER"},
		{name: "events without transport", mutate: func(c *Config) { c.Recompute.Mode = RecomputeEvents }, wantErr: "KAFKA_BROKERS"},
		{name: "events over dynamodb", mutate: func(c *Config) {
			c.Recompute.Mode = RecomputeEvents
			c.DynamoDB.EventsTable = "greenify-events"
		}},
		{name: "unknown recompute mode", mutate: func(c *Config) { c.Recompute.Mode = "cron" }, wantErr: "RATING_RECOMPUTE"},
		{name: "no workers", mutate: func(c *Config) { c.Recompute.Workers = 0 }, wantErr: "WORKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_WorkersDoNotNeedSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Error(t, cfg.ValidateAPI())
}

func TestValidateAPI(t *testing.T) {
	tests := []struct {
		name    string
		auth    Auth
		wantErr string
	}{
		{name: "valid", auth: Auth{JWTSecret: testSecret}},
		{name: "with admin", auth: Auth{JWTSecret: testSecret, AdminEmail: "a@b.c", AdminPassword: "password1"}},
		{name: "short secret", auth: Auth{JWTSecret: "short"}, wantErr: "JWT_SECRET"},
		{name: "admin without password", auth: Auth{JWTSecret: testSecret, AdminEmail: "a@b.c"}, wantErr: "ADMIN_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Auth: tt.auth}
			err := c.ValidateAPI()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
