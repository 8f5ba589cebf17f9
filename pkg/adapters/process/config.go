package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CommandConfig describes a storage host that may be spawned as a frame.
type CommandConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	// Description is shown by `storageguest frames`.
	Description string `yaml:"description" json:"description"`
}

// Source returns the exec: source naming this frame.
func (c CommandConfig) Source() string {
	return Scheme + c.Name
}

// CommandLine renders the command and its arguments.
func (c CommandConfig) CommandLine() string {
	return strings.Join(append([]string{c.Command}, c.Args...), " ")
}

// ConfigFile is the frames file: the allow-list of exec: frames.
type ConfigFile struct {
	Frames []CommandConfig `yaml:"frames" json:"frames"`
}

// LoadCommands reads a frames file (JSON when the extension is .json, YAML
// otherwise) and returns the commands by name. A missing file yields an empty
// registry. Entries without a name or command and duplicate names are errors.
func LoadCommands(path string) (map[string]CommandConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]CommandConfig{}, nil
		}
		return nil, fmt.Errorf("read frames file: %w", err)
	}

	var file ConfigFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("parse frames file %s: %w", path, err)
	}

	commands := make(map[string]CommandConfig, len(file.Frames))
	var errs []error
	for i, c := range file.Frames {
		switch {
		case c.Name == "":
			errs = append(errs, fmt.Errorf("frames[%d]: missing name", i))
		case strings.ContainsAny(c.Name, " \t"):
			errs = append(errs, fmt.Errorf("frames[%d]: name %q contains whitespace", i, c.Name))
		case c.Command == "":
			errs = append(errs, fmt.Errorf("frames[%d] %q: missing command", i, c.Name))
		default:
			if _, dup := commands[c.Name]; dup {
				errs = append(errs, fmt.Errorf("frames[%d]: duplicate name %q", i, c.Name))
				continue
			}
			commands[c.Name] = c
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid frames file %s: %w", path, err)
	}
	return commands, nil
}

// SortedCommands returns the commands ordered by name.
func SortedCommands(commands map[string]CommandConfig) []CommandConfig {
	out := make([]CommandConfig, 0, len(commands))
	for _, c := range commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
