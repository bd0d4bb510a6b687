package utils

import (
	"os"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	godotenv.Load()
}

func JWTSecret() string {
	return os.Getenv("SECRET")
}

// AdminPasswordHash is the bcrypt hash the admin login checks against.
func AdminPasswordHash() string {
	return os.Getenv("ADMIN_PASSWORD_HASH")
}
