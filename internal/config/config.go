package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port           string
	CatalogDriver  string // memory, sqlite3 or postgres
	DatabaseURL    string
	QuestionsFile  string
	DeckMode       string // batch or draw
	AllowedOrigins []string
	NATSURL        string
	NATSSubject    string
	LogLevel       string
	LogFormat      string

	// Fallback game settings, used when the catalog has none.
	MaxPlayers       int
	QuestionTimeMS   int
	QuestionsPerGame int
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	return fromEnv()
}

func fromEnv() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		CatalogDriver:    getEnv("CATALOG_DRIVER", "memory"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		QuestionsFile:    getEnv("QUESTIONS_FILE", ""),
		DeckMode:         getEnv("DECK_MODE", "batch"),
		AllowedOrigins:   getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		NATSURL:          getEnv("NATS_URL", ""),
		NATSSubject:      getEnv("NATS_SUBJECT", "trivia.rooms"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		MaxPlayers:       getEnvAsInt("MAX_PLAYERS", 4),
		QuestionTimeMS:   getEnvAsInt("QUESTION_TIME_MS", 10000),
		QuestionsPerGame: getEnvAsInt("QUESTIONS_PER_GAME", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
