package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Config holds all server parameters.
type Config struct {
	WSPort            int    `json:"ws_port"`
	DatabaseURL       string `json:"database_url"`
	RedisURL          string `json:"redis_url"`
	AuthBaseURL       string `json:"auth_base_url"`
	PushEndpoint      string `json:"push_endpoint"`
	PushAPIKey        string `json:"push_api_key"`
	MaxNameLength     int    `json:"max_name_length"`
	MaxRoomNameLength int    `json:"max_room_name_length"`
	ResyncIntervalSec int    `json:"resync_interval_sec"`
	RoomGraceSec      int    `json:"room_grace_sec"`
	RecheckDelaySec   int    `json:"recheck_delay_sec"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		WSPort:            8080,
		MaxNameLength:     24,
		MaxRoomNameLength: 32,
		ResyncIntervalSec: 10,
		RoomGraceSec:      30,
		RecheckDelaySec:   15,
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	// Try to load from config.json
	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	// Environment variable overrides
	overrideInt(&cfg.WSPort, "WS_PORT")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.RedisURL, "REDIS_URL")
	overrideString(&cfg.AuthBaseURL, "AUTH_BASE_URL")
	overrideString(&cfg.PushEndpoint, "PUSH_ENDPOINT")
	overrideString(&cfg.PushAPIKey, "PUSH_API_KEY")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideInt(&cfg.MaxRoomNameLength, "MAX_ROOM_NAME_LENGTH")
	overrideInt(&cfg.ResyncIntervalSec, "RESYNC_INTERVAL_SEC")
	overrideInt(&cfg.RoomGraceSec, "ROOM_GRACE_SEC")
	overrideInt(&cfg.RecheckDelaySec, "RECHECK_DELAY_SEC")

	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
