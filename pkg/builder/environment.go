// Package builder implements the Configure/Script/NoBuild build
// drivers described in spec §4.5.
package builder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/openflowlabs/gatebuild/pkg/bundle"
	"github.com/openflowlabs/gatebuild/pkg/gbuild"
)

// standardFlagTargets are the four environment variables an unnamed
// `flag` node fans out to (spec §4.5 step 1).
var standardFlagTargets = []string{"CFLAGS", "CXXFLAGS", "CPPFLAGS", "FFLAGS"}

// Environment assembles the configure/script child-process environment
// from an empty base plus env.json plus the bundle's flag/option
// declarations, per spec §4.5.
type Environment struct {
	vars map[string]string
}

// NewEnvironment starts from an empty environment plus a derived PATH.
func NewEnvironment(searchPath string) *Environment {
	return &Environment{vars: map[string]string{"PATH": searchPath}}
}

// LoadEnvJSON reads `env.json` — a JSON array of [key, value] pairs,
// the exact wire format the original implementation reads with
// serde_json — from bundleDir, merging entries into e. Missing
// env.json is not an error; it is an optional ambient supplement.
func (e *Environment) LoadEnvJSON(bundleDir string) error {
	path := filepath.Join(bundleDir, "env.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &gbuild.IOError{Op: "read env.json", Err: err}
	}
	var pairs [][2]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return &gbuild.SchemaError{Reason: "env.json must be a JSON array of [key, value] pairs: " + err.Error()}
	}
	for _, p := range pairs {
		e.vars[p[0]] = p[1]
	}
	return nil
}

// LoadDotEnv merges an optional `.env` overlay (§11 ambient
// supplement) found in bundleDir.
func (e *Environment) LoadDotEnv(bundleDir string) error {
	path := filepath.Join(bundleDir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	m, err := godotenv.Read(path)
	if err != nil {
		return &gbuild.IOError{Op: "read .env overlay", Err: err}
	}
	for k, v := range m {
		e.vars[k] = v
	}
	return nil
}

// LoadVarsYAML merges an optional `vars.yaml` overlay (§11 ambient
// supplement) found in bundleDir.
func (e *Environment) LoadVarsYAML(bundleDir string) error {
	path := filepath.Join(bundleDir, "vars.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &gbuild.IOError{Op: "read vars.yaml overlay", Err: err}
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return &gbuild.SchemaError{Reason: "vars.yaml must be a flat string map: " + err.Error()}
	}
	for k, v := range m {
		e.vars[k] = v
	}
	return nil
}

// ApplyFlags fans each configure flag out to its named target, or to
// the standard four compiler-flag variables when unnamed, expanding
// $VAR references against the environment assembled so far.
func (e *Environment) ApplyFlags(flags []bundle.ConfigureFlag) {
	for _, f := range flags {
		value := e.expand(f.Value)
		targets := standardFlagTargets
		if f.FlagName != "" {
			targets = []string{f.FlagName}
		}
		for _, t := range targets {
			if existing, ok := e.vars[t]; ok && existing != "" {
				e.vars[t] = existing + " " + value
			} else {
				e.vars[t] = value
			}
		}
	}
}

func (e *Environment) expand(s string) string {
	return os.Expand(s, func(key string) string { return e.vars[key] })
}

// Set assigns a single variable directly (used for DESTDIR and
// similar structural entries).
func (e *Environment) Set(key, value string) {
	e.vars[key] = value
}

// Get returns a variable's current value.
func (e *Environment) Get(key string) string {
	return e.vars[key]
}

// Slice renders the environment as a sorted KEY=VALUE slice suitable
// for exec.Cmd.Env / toolexec.Invocation.Env.
func (e *Environment) Slice() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

// defaultSearchPath is used when no more specific PATH is configured.
const defaultSearchPath = "/usr/bin:/usr/sbin:/usr/gnu/bin"
