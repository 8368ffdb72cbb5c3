package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AutosaveDelay is the debounce window for review-session autosave.
//
// Set via env:
// - AUTOSAVE_DELAY_MS=2000
func AutosaveDelay() time.Duration {
	ms := intFromEnv("AUTOSAVE_DELAY_MS", 2000)
	if ms <= 0 {
		ms = 2000
	}
	return time.Duration(ms) * time.Millisecond
}

// DocumentNumberRetries bounds how many times a derived document insert is retried
// after the (owner_id, document_type, number) unique index rejects an allocated number.
func DocumentNumberRetries() int {
	n := intFromEnv("DOCUMENT_NUMBER_RETRIES", 3)
	if n < 1 {
		return 1
	}
	return n
}

func ClientMinSimilarity() float64 {
	return floatFromEnv("CLIENT_MIN_SIMILARITY", 0.3)
}

func ClientSuggestionLimit() int {
	n := intFromEnv("CLIENT_SUGGESTION_LIMIT", 5)
	if n < 1 {
		return 5
	}
	return n
}

func MergeSearchConcurrency() int {
	n := intFromEnv("MERGE_SEARCH_CONCURRENCY", 4)
	if n < 1 {
		return 1
	}
	return n
}

// DefaultPhoneRegion is the libphonenumber region used when a spoken phone number has no
// country prefix.
func DefaultPhoneRegion() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_PHONE_REGION")))
	if v == "" {
		return "US"
	}
	return v
}

// CacheLifespan is how long owner-scoped lists (client directory) stay in Redis.
//
// Set via env:
// - CACHE_LIFESPAN=1 (hours)
func CacheLifespan() time.Duration {
	lifespan := intFromEnv("CACHE_LIFESPAN", 1)
	if lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
