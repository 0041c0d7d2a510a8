// Package refdata reads the read-only reference tables (customers, products,
// inventory, loyalty rules, promotions) from a data directory.
package refdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var extensions = []string{".json", ".yaml", ".yml"}

type Config struct {
	DataDir string `split_words:"true" default:"data"`
}

// Load decodes name (without extension) from dir, trying .json, .yaml and .yml
// in that order. A missing or malformed file yields the zero value and a warning.
func Load[T any](dir, name string) T {
	var out T
	path, err := resolve(dir, name)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Str("name", name).Msg("reference data not found, using empty set")
		return out
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("reference data unreadable, using empty set")
		return out
	}

	if err := decode(path, raw, &out); err != nil {
		var zero T
		log.Warn().Err(err).Str("path", path).Msg("reference data malformed, using empty set")
		return zero
	}

	log.Debug().Str("path", path).Msg("reference data loaded")
	return out
}

func resolve(dir, name string) (string, error) {
	for _, ext := range extensions {
		path := filepath.Join(dir, name+ext)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}

func decode(path string, raw []byte, out any) error {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(raw, out)
	default:
		return json.Unmarshal(raw, out)
	}
}
