package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dunamismax/pixelgraph/internal/domain"
)

// LoadRecipe reads a recipe file. The format follows the extension: .toml
// or .json. Unknown keys are rejected in both.
func LoadRecipe(path string) (domain.Recipe, error) {
	var r domain.Recipe
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.DecodeFile(path, &r)
		if err != nil {
			return domain.Recipe{}, fmt.Errorf("decode recipe %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return domain.Recipe{}, fmt.Errorf("decode recipe %s: unknown key %s", path, undecoded[0])
		}
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return domain.Recipe{}, fmt.Errorf("open recipe: %w", err)
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&r); err != nil {
			return domain.Recipe{}, fmt.Errorf("decode recipe %s: %w", path, err)
		}
	default:
		return domain.Recipe{}, fmt.Errorf("unsupported recipe extension %q", filepath.Ext(path))
	}

	if err := r.Validate(); err != nil {
		return domain.Recipe{}, fmt.Errorf("recipe %s: %w", path, err)
	}
	return r, nil
}
