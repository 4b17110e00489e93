package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFiles loads the given dotenv files (".env" when none are given) into the process environment.
//
// Missing files are skipped; variables already set in the environment win.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: failed to load %s: %w", ErrInvalidConfig, file, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with any matching environment variables.
func ApplyEnv(c *Config) {
	c.Database.Driver = GetEnv("FOOTPRINT_DB_DRIVER", c.Database.Driver)
	c.Database.Path = GetEnv("FOOTPRINT_DB_PATH", c.Database.Path)
	c.Server.Host = GetEnv("FOOTPRINT_SERVER_HOST", c.Server.Host)
	c.Server.Port = GetEnvInt("FOOTPRINT_SERVER_PORT", c.Server.Port)
	c.Assets.BaseURL = GetEnv("FOOTPRINT_ASSETS_URL", c.Assets.BaseURL)
	c.State.Path = GetEnv("FOOTPRINT_STATE_PATH", c.State.Path)

	c.Upload.Provider = GetEnv("FOOTPRINT_UPLOAD_PROVIDER", c.Upload.Provider)
	c.Upload.Cloudinary.CloudName = GetEnv("CLOUDINARY_CLOUD_NAME", c.Upload.Cloudinary.CloudName)
	c.Upload.Cloudinary.UploadPreset = GetEnv("CLOUDINARY_UPLOAD_PRESET", c.Upload.Cloudinary.UploadPreset)
	c.Upload.S3.Bucket = GetEnv("AWS_S3_BUCKET", c.Upload.S3.Bucket)
	c.Upload.S3.Region = GetEnv("AWS_REGION", c.Upload.S3.Region)
	c.Upload.S3.Endpoint = GetEnv("AWS_S3_ENDPOINT", c.Upload.S3.Endpoint)
	c.Upload.S3.AccessKeyID = GetEnv("AWS_ACCESS_KEY_ID", c.Upload.S3.AccessKeyID)
	c.Upload.S3.SecretAccessKey = GetEnv("AWS_SECRET_ACCESS_KEY", c.Upload.S3.SecretAccessKey)
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an integer or a default value
func GetEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
