package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Verify required environment variables
	required := []string{
		"OPENAI_API_KEY",
	}

	for _, env := range required {
		if os.Getenv(env) == "" {
			log.Printf("Warning: %s environment variable not set\n", env)
		}
	}
}

// Config holds runtime settings for a chorusd process.
type Config struct {
	APIPort  int
	NATSURL  string
	DataDir  string
	Model    string // default model for judge calls and spawned personas
	InMemory bool   // run the store in memory (tests, throwaway runs)
}

// OpenAIKey returns the API key for the language-model capability.
// Empty means the process runs without a live model.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// DefaultModel is used when a persona record does not pin a model.
func DefaultModel() string {
	if m := os.Getenv("CHORUS_MODEL"); m != "" {
		return m
	}
	return "gpt-4o"
}
