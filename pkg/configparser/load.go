package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNoFilePath = errors.New("no file path provided")

// LoadYamlFile walks a flat YAML file and exports every scalar as an
// environment variable named SECTION_KEY. Real environment variables win
// over file values, so a deployment can override any line. Only the subset
// of YAML a config file needs is understood: nested maps of scalars,
// comments and ${VAR:-default} substitution.
func LoadYamlFile(path string) error {
	if path == "" {
		return ErrNoFilePath
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open YAML file: %w", err)
	}
	defer f.Close()

	var sections []string
	lastIndent := 0

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		indent := leadingSpaces(raw)
		if indent < lastIndent {
			// Two spaces per nesting level.
			for i := 0; i < (lastIndent-indent)/2 && len(sections) > 0; i++ {
				sections = sections[:len(sections)-1]
			}
		}
		lastIndent = indent

		// A bare "name:" opens a section; "key: value" is a leaf.
		if strings.HasSuffix(line, ":") && !strings.Contains(line, ": ") {
			sections = append(sections, strings.TrimSuffix(line, ":"))
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if value == "" {
			continue
		}
		value = substituteEnv(value)

		name := strings.ToUpper(key)
		if len(sections) > 0 {
			name = strings.ToUpper(strings.Join(append(sections, key), "_"))
		}
		if os.Getenv(name) == "" {
			if err := os.Setenv(name, value); err != nil {
				return fmt.Errorf("could not set env var %s: %w", name, err)
			}
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("error reading YAML file: %w", err)
	}

	return nil
}

func leadingSpaces(s string) int {
	n := 0
	for _, ch := range s {
		if ch != ' ' {
			break
		}
		n++
	}
	return n
}

// substituteEnv resolves the ${VAR:-default} form; anything else passes
// through untouched.
func substituteEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	name, def, ok := strings.Cut(value[2:len(value)-1], ":-")
	if !ok {
		return value
	}
	if env := os.Getenv(strings.TrimSpace(name)); env != "" {
		return env
	}
	return strings.TrimSpace(def)
}
