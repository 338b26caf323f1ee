package regen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// GlobalConfig is the arming configuration singleton. Configure
// overwrites it; every arming operation loads it fresh from the store
// and never caches it beyond that one operation.
type GlobalConfig struct {
	GenerationTicks int    `json:"generation_ticks"`
	BlockType       string `json:"block_type"`
	PlaceholderType string `json:"placeholder_type"`
}

// ConfigInput is the raw three-field form the configuration surface
// collects. Everything arrives as strings.
type ConfigInput struct {
	GenerationTicks string
	BlockType       string
	PlaceholderType string
}

var (
	// ErrInvalidConfig wraps every Configure validation failure.
	ErrInvalidConfig = errors.New("invalid arming configuration")
	// ErrNotConfigured means no usable configuration singleton exists.
	ErrNotConfigured = errors.New("arming configuration missing")
	// ErrStoreWrite means the state did not reach the store; the caller
	// may retry, nothing was durably changed for certain.
	ErrStoreWrite = errors.New("store write failed")
)

// Configure validates the raw input and overwrites the configuration
// singleton. On any validation failure nothing is written.
func (e *Engine) Configure(in ConfigInput) (GlobalConfig, error) {
	ticksRaw := strings.TrimSpace(in.GenerationTicks)
	blockType := strings.TrimSpace(in.BlockType)
	placeholder := strings.TrimSpace(in.PlaceholderType)
	if ticksRaw == "" || blockType == "" || placeholder == "" {
		return GlobalConfig{}, fmt.Errorf("%w: all three fields are required", ErrInvalidConfig)
	}
	ticks, err := strconv.Atoi(ticksRaw)
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("%w: generation ticks %q is not an integer", ErrInvalidConfig, ticksRaw)
	}
	if ticks <= 0 {
		return GlobalConfig{}, fmt.Errorf("%w: generation ticks must be positive, got %d", ErrInvalidConfig, ticks)
	}
	cfg := GlobalConfig{
		GenerationTicks: ticks,
		BlockType:       blockType,
		PlaceholderType: placeholder,
	}
	if !e.store.Set(ConfigKey, cfg) {
		return GlobalConfig{}, ErrStoreWrite
	}
	return cfg, nil
}

// LoadConfig reads the configuration singleton. ok is false when it is
// absent, unreadable, or holds unusable values.
func (e *Engine) LoadConfig() (GlobalConfig, bool) {
	var cfg GlobalConfig
	if !e.store.Get(ConfigKey, &cfg) {
		return GlobalConfig{}, false
	}
	if cfg.GenerationTicks <= 0 || cfg.BlockType == "" || cfg.PlaceholderType == "" {
		return GlobalConfig{}, false
	}
	return cfg, true
}
