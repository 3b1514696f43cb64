package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// CacheConfig holds all cache-related configuration
type CacheConfig struct {
	// Approved station list (in-process and S3 snapshot)
	StationListTTLMinutes int

	// LRU Cache settings for by-id lookups
	StationLRUSize       int
	StationLRUTTLMinutes int

	// Nearby search
	NearbyWorkers int

	// General settings
	EnableLRUCache bool
	EnableSnapshot bool
}

const (
	// Default values
	defaultStationListTTLMinutes = 5
	defaultStationLRUSize        = 1000
	defaultStationLRUTTLMinutes  = 15
	defaultNearbyWorkers         = 4
)

// GetCacheConfig returns the cache configuration from environment variables or defaults
func GetCacheConfig() *CacheConfig {
	config := &CacheConfig{
		StationListTTLMinutes: getEnvInt("CACHE_STATION_LIST_TTL_MINUTES", defaultStationListTTLMinutes),
		StationLRUSize:        getEnvInt("CACHE_STATION_LRU_SIZE", defaultStationLRUSize),
		StationLRUTTLMinutes:  getEnvInt("CACHE_STATION_LRU_TTL_MINUTES", defaultStationLRUTTLMinutes),
		NearbyWorkers:         getEnvInt("CACHE_NEARBY_WORKERS", defaultNearbyWorkers),
		EnableLRUCache:        getEnvBool("CACHE_ENABLE_LRU", true),
		EnableSnapshot:        getEnvBool("CACHE_ENABLE_SNAPSHOT", true),
	}

	log.Debug().
		Int("StationListTTLMinutes", config.StationListTTLMinutes).
		Int("StationLRUSize", config.StationLRUSize).
		Int("StationLRUTTLMinutes", config.StationLRUTTLMinutes).
		Int("NearbyWorkers", config.NearbyWorkers).
		Bool("EnableLRUCache", config.EnableLRUCache).
		Bool("EnableSnapshot", config.EnableSnapshot).
		Msg("Cache configuration loaded")

	return config
}

// Helper methods for the CacheConfig struct
func (c *CacheConfig) GetStationListTTL() time.Duration {
	return time.Duration(c.StationListTTLMinutes) * time.Minute
}

func (c *CacheConfig) GetStationLRUTTL() time.Duration {
	return time.Duration(c.StationLRUTTLMinutes) * time.Minute
}

// Helper functions to get environment variables with defaults
func getEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Msg("Invalid integer value in environment variable, using default")
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
		log.Warn().Str("key", key).Msg("Invalid float value in environment variable, using default")
	}
	return defaultVal
}
