package bot

// Config represents the configuration for the reminder bot
type Config struct {
	// AppURL is opened by the reminder button; no button is shown when empty
	AppURL string
	// ButtonText labels the reminder button
	ButtonText string
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *Config {
	return &Config{
		ButtonText: "🎯 Start today's word",
	}
}
