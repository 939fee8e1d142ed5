// Package config loads the orchestrator's runtime configuration from a
// viper instance that cmd/orchestrator has already bound its cobra flags
// into, following the teacher's viper-based config loading: a flag, when
// set, always wins over its environment variable, which in turn wins over
// the documented default.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Viper keys. These double as the cobra flag names cmd/orchestrator
// registers, so viper.BindPFlag and BindEnv below resolve to the same key
// and a flag set at the CLI overrides its environment variable.
const (
	KeyRedisURL   = "redis-url"
	KeyPoolSize   = "pool-size"
	KeyPopTimeout = "pop-timeout"
	KeyDebug      = "debug"
	KeyLogFormat  = "log-format"
)

// Environment variable names bound to the keys above.
const (
	EnvRedisURL   = "REDIS_URL"
	EnvPoolSize   = "ORCHESTRATOR_POOL_SIZE"
	EnvPopTimeout = "ORCHESTRATOR_POP_TIMEOUT"
	EnvDebug      = "ORCHESTRATOR_DEBUG"
	EnvLogFormat  = "ORCHESTRATOR_LOG_FORMAT"
)

const (
	defaultPoolSize   = 4
	defaultPopTimeout = 5 * time.Second
	defaultLogFormat  = "text"
)

// Config is the orchestrator's resolved runtime configuration.
type Config struct {
	// RedisURL selects the persistence backend: empty means in-memory,
	// set means remote (Redis), per spec.md §6.
	RedisURL string

	// PoolSize is the number of worker goroutines a `worker` invocation
	// runs concurrently.
	PoolSize int

	// PopTimeout bounds each PopTask call in the worker loop.
	PopTimeout time.Duration

	Debug     bool
	LogFormat string
}

// Load resolves Config from v, which the caller has already bound cobra
// flags into via viper.BindPFlag. Binding each key to its environment
// variable here means a value set only via env (no flag present, e.g. the
// `schedule` command never registers --pool-size) still takes effect.
func Load(v *viper.Viper) (*Config, error) {
	binds := map[string]string{
		KeyRedisURL:   EnvRedisURL,
		KeyPoolSize:   EnvPoolSize,
		KeyPopTimeout: EnvPopTimeout,
		KeyDebug:      EnvDebug,
		KeyLogFormat:  EnvLogFormat,
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	v.SetDefault(KeyPoolSize, defaultPoolSize)
	v.SetDefault(KeyPopTimeout, defaultPopTimeout)
	v.SetDefault(KeyLogFormat, defaultLogFormat)
	v.SetDefault(KeyDebug, false)

	return &Config{
		RedisURL:   v.GetString(KeyRedisURL),
		PoolSize:   v.GetInt(KeyPoolSize),
		PopTimeout: v.GetDuration(KeyPopTimeout),
		Debug:      v.GetBool(KeyDebug),
		LogFormat:  v.GetString(KeyLogFormat),
	}, nil
}
