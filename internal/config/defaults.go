package config

const (
	defaultDataDir         = "~/.local/share/hindsight/data"
	defaultLogDir          = "~/.local/share/hindsight/logs"
	defaultIntervalSeconds = 5.0
	defaultMaxTitleLength  = 80
	defaultOCRBinary       = "tesseract"
	defaultOCRLanguage     = "eng"
	defaultOCRTimeout      = 30
	defaultAlgorithm       = "aes-gcm"
	defaultKDFIterations   = 600_000
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Capture: Capture{
			IntervalSeconds:  defaultIntervalSeconds,
			MaxTitleLength:   defaultMaxTitleLength,
			OCRBinary:        defaultOCRBinary,
			OCRLanguage:      defaultOCRLanguage,
			OCRTimeoutSecond: defaultOCRTimeout,
		},
		Encryption: Encryption{
			Algorithm:  defaultAlgorithm,
			Iterations: defaultKDFIterations,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
