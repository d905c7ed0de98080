package configs

// Redis configures the client used by the redis ledger. URL accepts either
// a redis:// URL or a plain host:port.
type Redis struct {
	URL    string `env:"URL" envDefault:"localhost:6379"`
	Stream string `env:"STREAM" envDefault:"metaads:transfers"`
}
