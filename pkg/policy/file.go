package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML list of custom scenarios from disk. Compilation
// is a separate step; a loaded file may still be rejected by CompileAll.
func LoadFile(path string) ([]CustomScenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}
	var specs []CustomScenario
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("decoding policy file %s: %w", path, err)
	}
	return specs, nil
}
