package policy

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/ini.v1"
)

//go:embed policy.schema.json
var schemaJSON []byte

const schemaURL = "policy.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// fileDoc is the JSON policy document. Frequency is either a string
// ("daily") or a day count.
type fileDoc struct {
	Mode                   Mode            `json:"mode"`
	MinimumRequiredVersion string          `json:"minimumRequiredVersion"`
	RecommendedVersion     string          `json:"recommendedVersion"`
	Frequency              json.RawMessage `json:"frequency"`
}

// LoadFile reads rules from a .json or .ini policy file.
func LoadFile(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read policy file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".conf", ".cfg":
		return ParseINI(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON validates data against the embedded policy schema and decodes it.
func ParseJSON(data []byte) (Rules, error) {
	sch, err := policySchema()
	if err != nil {
		return Rules{}, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return Rules{}, fmt.Errorf("parse policy JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return Rules{}, fmt.Errorf("invalid policy: %w", err)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Rules{}, fmt.Errorf("decode policy JSON: %w", err)
	}
	p, err := New(doc.Mode, doc.MinimumRequiredVersion, doc.RecommendedVersion)
	if err != nil {
		return Rules{}, err
	}
	freq, err := decodeFrequency(doc.Frequency)
	if err != nil {
		return Rules{}, err
	}
	return Rules{Policy: p, Frequency: freq}, nil
}

// ParseINI decodes a policy from an INI document:
//
//	[policy]
//	mode = mandatory_and_optional
//	minimum_required_version = 2.0
//	recommended_version = 2.4
//
//	[reprompt]
//	frequency = weekly
func ParseINI(data []byte) (Rules, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
	}, data)
	if err != nil {
		return Rules{}, fmt.Errorf("parse policy INI: %w", err)
	}
	sec := cfg.Section("policy")
	p, err := New(
		Mode(sec.Key("mode").String()),
		sec.Key("minimum_required_version").String(),
		sec.Key("recommended_version").String(),
	)
	if err != nil {
		return Rules{}, err
	}
	freq := Daily
	if raw := strings.TrimSpace(cfg.Section("reprompt").Key("frequency").String()); raw != "" {
		if freq, err = ParseFrequency(raw); err != nil {
			return Rules{}, err
		}
	}
	return Rules{Policy: p, Frequency: freq}, nil
}

func decodeFrequency(raw json.RawMessage) (Frequency, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return Daily, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("decode frequency: %w", err)
		}
		return ParseFrequency(s)
	}
	n, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("decode frequency: %w", err)
	}
	return Custom(uint(n)), nil
}

func policySchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse policy schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("load policy schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}
