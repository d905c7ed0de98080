package configs

// Auth configures caller identification on the HTTP surface. Tokens are
// HS256 JWTs signed with JWTSecret; the subject is the caller account.
type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}
