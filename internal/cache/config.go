package cache

const (
	// DefaultMaxAgeDays is how long a summary is kept after its last
	// write.
	DefaultMaxAgeDays = 7

	// DefaultMaxEntries bounds the number of summaries kept after
	// maintenance.
	DefaultMaxEntries = 100

	// dayMillis is one day in milliseconds.
	dayMillis = 24 * 60 * 60 * 1000
)

// Config holds the retention policy applied by RunMaintenance. A value of
// zero or less disables the corresponding pass.
type Config struct {
	// MaxAgeDays is the age in days after which a summary expires.
	MaxAgeDays int `yaml:"max_age_days"`

	// MaxEntries is the number of newest summaries kept.
	MaxEntries int `yaml:"max_entries"`
}

// DefaultConfig returns the default retention policy.
func DefaultConfig() Config {
	return Config{
		MaxAgeDays: DefaultMaxAgeDays,
		MaxEntries: DefaultMaxEntries,
	}
}
