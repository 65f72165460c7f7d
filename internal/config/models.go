package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	DefaultModel       = "gpt-4.1-nano"
	DefaultVisionModel = "gpt-4o"
)

// ModelsConfig describes which upstream models the relay talks to.
type ModelsConfig struct {
	// Default is used when a chat request does not name a model.
	Default string `yaml:"default"`

	// Vision is the only model allowed to receive image-only turns.
	Vision string `yaml:"vision"`

	// VisionRequiredReply is stored as the assistant reply when an image-only
	// turn targets a model other than Vision.
	VisionRequiredReply string `yaml:"vision_required_reply"`
}

// DefaultModelsConfig returns the built-in model settings.
func DefaultModelsConfig() *ModelsConfig {
	cfg := &ModelsConfig{}
	_ = cfg.Validate()
	return cfg
}

// Validate fills empty fields with defaults and rejects a vision model that
// is also blank after trimming.
func (cfg *ModelsConfig) Validate() error {
	cfg.Default = strings.TrimSpace(cfg.Default)
	cfg.Vision = strings.TrimSpace(cfg.Vision)

	if cfg.Default == "" {
		cfg.Default = DefaultModel
	}
	if cfg.Vision == "" {
		cfg.Vision = DefaultVisionModel
	}
	if strings.TrimSpace(cfg.VisionRequiredReply) == "" {
		cfg.VisionRequiredReply = fmt.Sprintf("Use %s to get responses for image input.", displayName(cfg.Vision))
	}

	if strings.ContainsAny(cfg.Vision, " \t\n") {
		return errors.New("vision model identifier must not contain whitespace")
	}

	return nil
}

// displayName turns "gpt-4o" into "GPT-4o".
func displayName(model string) string {
	if rest, ok := strings.CutPrefix(model, "gpt-"); ok {
		return "GPT-" + rest
	}
	return model
}

func unmarshalModelsConfig(value *ModelsConfig, data []byte) error {
	type Aux ModelsConfig
	var aux Aux

	if err := yaml.Unmarshal(data, &aux); err != nil {
		return err
	}

	*value = ModelsConfig(aux)

	return value.Validate()
}

func init() {
	yaml.RegisterCustomUnmarshaler[ModelsConfig](unmarshalModelsConfig)
}
