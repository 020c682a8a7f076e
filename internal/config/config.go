package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr   string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath     string     `env:"DB_PATH" envDefault:"data/cityescape.db"`
	LogLevel   slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir     string     `env:"SPA_DIR" envDefault:"../web/dist"`
	StagesFile string     `env:"STAGES_FILE"`
	// MaxSessions caps concurrently open game sessions.
	MaxSessions int `env:"MAX_SESSIONS" envDefault:"64"`

	Gemini Gemini `envPrefix:"GEMINI_"`
	Ollama Ollama `envPrefix:"OLLAMA_"`
	TTS    TTS    `envPrefix:"TTS_"`
	Engine Engine `envPrefix:"ENGINE_"`
	Pacing Pacing `envPrefix:"PACING_"`
}

type Gemini struct {
	APIKey      string  `env:"API_KEY"`
	Model       string  `env:"MODEL" envDefault:"gemini-2.0-flash"`
	Temperature float32 `env:"TEMPERATURE" envDefault:"0.8"`
}

type Ollama struct {
	Enabled  bool          `env:"ENABLED" envDefault:"false"`
	Endpoint string        `env:"ENDPOINT" envDefault:"http://localhost:11434"`
	Model    string        `env:"MODEL" envDefault:"gemma3:1b"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type TTS struct {
	// Provider is "polly" or "none".
	Provider       string        `env:"PROVIDER" envDefault:"none"`
	Region         string        `env:"REGION" envDefault:"ap-northeast-2"`
	Voice          string        `env:"VOICE" envDefault:"Seoyeon"`
	Engine         string        `env:"ENGINE" envDefault:"neural"`
	SampleRate     string        `env:"SAMPLE_RATE" envDefault:"24000"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"15s"`
	BytesPerSecond int           `env:"BYTES_PER_SECOND" envDefault:"6000"`
}

type Engine struct {
	RetryBackoff time.Duration `env:"RETRY_BACKOFF" envDefault:"500ms"`
	CallTimeout  time.Duration `env:"CALL_TIMEOUT" envDefault:"0s"`
	MinPuzzleLen int           `env:"MIN_PUZZLE_LEN" envDefault:"20"`
}

// Pacing holds the scene's presentation delays.
type Pacing struct {
	Flight     time.Duration `env:"FLIGHT" envDefault:"3s"`
	Transition time.Duration `env:"TRANSITION" envDefault:"1500ms"`
	Weather    time.Duration `env:"WEATHER" envDefault:"2s"`
	PickRadius float64       `env:"PICK_RADIUS" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	switch cfg.TTS.Provider {
	case "polly", "none":
	default:
		return nil, fmt.Errorf("unknown TTS_PROVIDER %q", cfg.TTS.Provider)
	}
	return &cfg, nil
}
