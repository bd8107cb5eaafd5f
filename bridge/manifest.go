package bridge

import (
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// ModuleManifest describes a loadable module's exported surface and its
// dependency list, generalizing the teacher's addon.yaml (read by
// cmd/mkaddon) from "generate Go source for a statically linked addon" to
// "describe a module's names and its dependency order so dependencies load
// first" (addon.go's reallyLoadAddon). Bridge.LoadModule consults only
// Depends; Classes and Functions are recorded but not used when loading.
type ModuleManifest struct {
	Name      string   `yaml:"name"`
	Classes   []string `yaml:"classes"`
	Functions []string `yaml:"functions"`
	// Depends lists module names that must be loaded, in this order, before
	// this module is initialized. load_module fails the whole load if any
	// dependency cannot be found, mirroring reallyLoadAddon exactly.
	Depends []string `yaml:"depends"`
}

// LoadManifest reads and parses a ModuleManifest from a YAML file.
func LoadManifest(path string) (*ModuleManifest, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errf(ErrModuleNotFound, "reading manifest %s: %v", path, err)
	}
	var m ModuleManifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, errf(ErrModuleNotFound, "parsing manifest %s: %v", path, err)
	}
	return &m, nil
}
