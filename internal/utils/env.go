package utils

import (
	"os"
	"strconv"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not an int, using default", "env_var", key, "raw", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func GetEnvAsFloat(key string, defaultVal float64, log *logger.Logger) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not a float, using default", "env_var", key, "raw", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable is not a bool, using default", "env_var", key, "raw", raw, "default", defaultVal)
		}
		return defaultVal
	}
	return val
}
