package router

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOptions reads Options from a YAML file. Values absent from the file keep
// the defaults of DefaultOptions. Programmatic fields such as Logger, Metrics
// and OnError are never read from YAML.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("router: read options: %w", err)
	}
	return ParseOptions(data)
}

// ParseOptions decodes YAML options, rejecting unknown keys.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("router: parse options: %w", err)
	}
	return opts, nil
}
