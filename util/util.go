package util

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/labstack/gommon/log"
)

func LookupEnvOrString(key string, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func LookupEnvOrBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		v, err := strconv.ParseBool(val)
		if err != nil {
			fmt.Fprintf(os.Stderr, "LookupEnvOrBool[%s]: %v\n", key, err)
		}
		return v
	}
	return defaultVal
}

func LookupEnvOrInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		v, err := strconv.Atoi(val)
		if err != nil {
			fmt.Fprintf(os.Stderr, "LookupEnvOrInt[%s]: %v\n", key, err)
		}
		return v
	}
	return defaultVal
}

// StringFromEmbedFile reads a file from an embedded filesystem and
// returns its content as a string.
func StringFromEmbedFile(embed fs.FS, filename string) (string, error) {
	file, err := fs.ReadFile(embed, filename)
	if err != nil {
		return "", err
	}
	return string(file), nil
}

// ParseLogLevel returns the log level for the given name.
func ParseLogLevel(lvl string) (log.Lvl, error) {
	switch lvl {
	case "DEBUG":
		return log.DEBUG, nil
	case "INFO":
		return log.INFO, nil
	case "WARN":
		return log.WARN, nil
	case "ERROR":
		return log.ERROR, nil
	case "OFF":
		return log.OFF, nil
	default:
		return log.DEBUG, fmt.Errorf("not a valid log level: %s", lvl)
	}
}
