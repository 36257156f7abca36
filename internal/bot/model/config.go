package model

// ================ Config ================

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-1.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
	// Timeout bounds a single model invocation, parsed as a time.Duration.
	Timeout string `envconfig:"MODEL_TIMEOUT" default:"60s"`
}

type HistoryConfig struct {
	// Backend selects the store implementation: "memory" or "redis".
	Backend string `envconfig:"HISTORY_BACKEND" default:"memory"`
	// MaxTurns caps each conversation's stored history; the oldest turns are
	// evicted first.
	MaxTurns int `envconfig:"HISTORY_MAX_TURNS" default:"20"`
	// TTL expires whole stale conversations (redis backend only).
	TTL string `envconfig:"HISTORY_TTL" default:"24h"`
}

type BotConfig struct {
	// Timezone is used for the wall-clock annotation prefixed to stored user
	// turns so the model can reason about recency.
	Timezone string `envconfig:"BOT_TIMEZONE" default:"America/New_York"`
}
