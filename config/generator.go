package config

// GeneratorConfig configures the generative-text collaborator. It is passed to
// the provider at construction; nothing reads it from process globals.
type GeneratorConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"apiKey"`
	Model       string  `yaml:"model"`
	Endpoint    string  `yaml:"endpoint"`
	ProjectID   string  `yaml:"projectId"`
	Location    string  `yaml:"location"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeoutSecs"`
	MaxPoolSize int     `yaml:"maxPoolSize"`
}

func (c *GeneratorConfig) applyEnv() {
	setString(&c.Provider, "GENERATOR_PROVIDER")
	setString(&c.APIKey, "GENERATOR_API_KEY")
	setString(&c.Model, "GENERATOR_MODEL")
	setString(&c.Endpoint, "GENERATOR_ENDPOINT")
	setString(&c.ProjectID, "GOOGLE_CLOUD_PROJECT")
	setString(&c.Location, "GOOGLE_CLOUD_LOCATION")
	setInt(&c.TimeoutSecs, "GENERATOR_TIMEOUT_SECS")
}
