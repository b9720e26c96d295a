package core

type Config struct {
	JWT    JWTConfig    `yaml:"jwt" envPrefix:"JWT_"`
	Crypto CryptoConfig `yaml:"crypto" envPrefix:"CRYPTO_"`
	SignIn SignInConfig `yaml:"signin" envPrefix:"SIGNIN_"`
}

type JWTConfig struct {
	Secret              string `yaml:"secret" env:"SECRET"`                               // Shared with the admin application
	AccessTokenDuration int    `yaml:"access_token_duration" env:"ACCESS_TOKEN_DURATION"` // Admin session lifetime in seconds
}

type CryptoConfig struct {
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"` // 32 bytes, encrypts IMS tokens at rest
}

type SignInConfig struct {
	AuthURL             string `yaml:"auth_url" env:"AUTH_URL"` // IMS login popup URL
	DefaultProfileImage string `yaml:"default_profile_image" env:"DEFAULT_PROFILE_IMAGE"`
}
