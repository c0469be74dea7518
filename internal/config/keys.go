package config

import (
	"fmt"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
	kList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	check   func(v string) error
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "LAUNCHERPREFS_SERVER_HOST",
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "LAUNCHERPREFS_SERVER_PORT",
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "LAUNCHERPREFS_API_TOKEN",
		secret:  true,
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.driver", typ: kString, env: "LAUNCHERPREFS_STORAGE_DRIVER",
		check:   oneOf(DriverFile, DriverSQLite, DriverRedis, DriverMemory),
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LAUNCHERPREFS_STORAGE_DATA_DIR",
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.prefs_file", typ: kString, env: "LAUNCHERPREFS_STORAGE_PREFS_FILE",
		extract: func(cfg Config) any { return cfg.Storage.PrefsFile },
	},
	{
		key: "redis.url", typ: kString, env: "LAUNCHERPREFS_REDIS_URL",
		extract: func(cfg Config) any { return cfg.Redis.URL },
	},
	{
		key: "redis.prefix", typ: kString, env: "LAUNCHERPREFS_REDIS_PREFIX",
		extract: func(cfg Config) any { return cfg.Redis.Prefix },
	},
	{
		key: "history.retention", typ: kDuration, env: "LAUNCHERPREFS_HISTORY_RETENTION",
		extract: func(cfg Config) any { return cfg.History.Retention },
	},
	{
		key: "log.level", typ: kString, env: "LAUNCHERPREFS_LOG_LEVEL",
		check:   oneOf("debug", "info", "warn", "error"),
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "device.apps", typ: kList, env: "LAUNCHERPREFS_DEVICE_APPS",
		extract: func(cfg Config) any { return strings.Join(cfg.Device.Apps, ",") },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func oneOf(allowed ...string) func(string) error {
	return func(v string) error {
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %s", v, strings.Join(allowed, ", "))
	}
}

func parseDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative")
	}
	return d, nil
}
