package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// detectUnknownFields compares the raw descriptor with the known struct
// fields and returns one warning per unknown key.
func detectUnknownFields(data []byte) []string {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// The data was already decoded once, so this is not expected.
		return []string{"internal: failed to re-parse descriptor for unknown field detection"}
	}

	var warnings []string
	knownTopLevel := getYAMLFields(reflect.TypeOf(File{}))
	for _, key := range sortedKeys(raw) {
		if key == "$schema" {
			continue
		}
		if !knownTopLevel[key] {
			warnings = append(warnings, fmt.Sprintf("unknown field %q at root level (ignored)", key))
		}
	}

	if node, ok := raw["settings"]; ok {
		warnings = append(warnings, checkMappingFields(&node, reflect.TypeOf(SettingsConfig{}), "settings")...)
	}

	if node, ok := raw["runs"]; ok && node.Kind == yaml.SequenceNode {
		knownRun := reflect.TypeOf(RunConfig{})
		for i, item := range node.Content {
			warnings = append(warnings, checkMappingFields(item, knownRun, runLabel(item, i))...)
		}
	}

	return warnings
}

func checkMappingFields(node *yaml.Node, t reflect.Type, where string) []string {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	known := getYAMLFields(t)
	var warnings []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !known[key] {
			warnings = append(warnings, fmt.Sprintf("unknown field %q in %s (ignored)", key, where))
		}
	}
	return warnings
}

func runLabel(node *yaml.Node, i int) string {
	if node.Kind == yaml.MappingNode {
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value == "name" && node.Content[j+1].Value != "" {
				return fmt.Sprintf("run %q", node.Content[j+1].Value)
			}
		}
	}
	return fmt.Sprintf("runs[%d]", i)
}

// getYAMLFields returns a map of known YAML field names for a struct type.
func getYAMLFields(t reflect.Type) map[string]bool {
	fields := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			fields[name] = true
		}
	}
	return fields
}

func sortedKeys(m map[string]yaml.Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
