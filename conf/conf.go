// Package conf defines the proxy's optional tunables. The CLI's only
// required argument remains the TCP port (spec.md §6); everything
// here is loaded from an optional "-c config.yaml" file and falls
// back to Default() when no file is given.
package conf

// Bootstrap is the top-level optional configuration document.
type Bootstrap struct {
	PidFile string  `yaml:"pidfile"`
	Logger  Logger  `yaml:"logger"`
	Cache   Cache   `yaml:"cache"`
}

// Logger configures contrib/log's sinks.
type Logger struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// Cache configures the LRU cache's size caps. Zero values mean "use
// the spec.md §3 defaults" and are filled in by Default/merge.
type Cache struct {
	MaxObjectSize int `yaml:"max_object_size"`
	MaxCacheSize  int `yaml:"max_cache_size"`
}

// Default spec.md §3 constants: MAX_OBJECT_SIZE and MAX_CACHE_SIZE.
const (
	DefaultMaxObjectSize = 102400
	DefaultMaxCacheSize  = 1049000
)

// Default returns the compiled-in configuration used when no "-c"
// file is supplied.
func Default() *Bootstrap {
	return &Bootstrap{
		Logger: Logger{Level: "info"},
		Cache: Cache{
			MaxObjectSize: DefaultMaxObjectSize,
			MaxCacheSize:  DefaultMaxCacheSize,
		},
	}
}
