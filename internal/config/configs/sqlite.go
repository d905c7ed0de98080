package configs

// SQLite configures the file backed store. The schema is applied on open.
type SQLite struct {
	Path         string `env:"PATH" envDefault:"meta-ads.db"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"4"`
}
