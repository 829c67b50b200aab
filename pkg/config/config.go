// Package config reads YAML files into typed structs. ${VAR} references are
// expanded from the environment before parsing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by config types that check themselves after load.
type Validator interface {
	Validate() error
}

// Load parses filename into target and validates it. Fields absent from the
// file keep the values target already holds.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config %s: %w", filename, err)
	}
	if err := Decode(bytes.NewReader(data), target); err != nil {
		return fmt.Errorf("config %s: %w", filename, err)
	}
	return nil
}

// LoadOptional is Load for a file that may not exist. A missing file still
// runs validation on target. The bool reports whether the file was read.
func LoadOptional[T any](filename string, target *T) (bool, error) {
	err := Load(filename, target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, validate(target)
	}
	return err == nil, err
}

// Decode expands environment references in r, unmarshals into target and
// validates the result. An empty document is valid.
func Decode[T any](r io.Reader, target *T) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return validate(target)
}

func validate(target any) error {
	v, ok := target.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
