package ai

// GenerateOptions holds per-call generation parameters.
type GenerateOptions struct {
	// Temperature controls sampling randomness. Zero means deterministic-ish.
	Temperature float64

	// MaxTokens bounds the length of the completion.
	MaxTokens int

	// SystemPrompt is prepended as a system turn when non-empty.
	SystemPrompt string
}

// GenerateOption is a functional option for a single Generate call.
type GenerateOption func(*GenerateOptions)

// WithGenTemperature sets the sampling temperature.
func WithGenTemperature(temperature float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temperature
	}
}

// WithGenMaxTokens sets the completion length bound.
func WithGenMaxTokens(maxTokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithSystemPrompt sets the system turn for the call.
func WithSystemPrompt(prompt string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompt = prompt
	}
}

// ApplyGenerateOptions resolves options against the given defaults.
func ApplyGenerateOptions(defaults GenerateOptions, opts ...GenerateOption) GenerateOptions {
	resolved := defaults
	for _, opt := range opts {
		opt(&resolved)
	}
	return resolved
}
