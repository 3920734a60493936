// Package config reads service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port string

	// Backing store selection: postgres when DatabaseURL is set, redis when
	// RedisAddr is set, otherwise in-process memory (volatile).
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Twilio credentials and sender identity.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	// CoachPhone receives a summary SMS for every reservation.
	CoachPhone string
	// ClientNumbers is the broadcast recipient list for publish announcements.
	ClientNumbers []string
	// SendClientConfirmation enables the confirmation SMS to the reserving
	// client (SEND_CLIENT_CONFIRMATION=1).
	SendClientConfirmation bool
}

// Load reads configuration, logging (not failing) when no .env file exists.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_PHONE_NUMBER"),

		CoachPhone:             os.Getenv("COACH_PHONE"),
		ClientNumbers:          splitNumbers(os.Getenv("CLIENT_NUMBERS")),
		SendClientConfirmation: os.Getenv("SEND_CLIENT_CONFIRMATION") == "1",
	}
}

// TwilioConfigured reports whether SMS delivery can be attempted at all.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

// splitNumbers parses the comma-separated recipient list, dropping blanks.
func splitNumbers(raw string) []string {
	var numbers []string
	for _, part := range strings.Split(raw, ",") {
		if n := strings.TrimSpace(part); n != "" {
			numbers = append(numbers, n)
		}
	}
	return numbers
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
