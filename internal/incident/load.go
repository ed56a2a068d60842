package incident

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads an incident description. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func Load(path string) (Incident, error) {
	var in Incident
	data, err := os.ReadFile(path)
	if err != nil {
		return in, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &in)
	default:
		err = json.Unmarshal(data, &in)
	}
	if err != nil {
		return Incident{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	in.Industry = strings.ToLower(strings.TrimSpace(in.Industry))
	return in, nil
}
