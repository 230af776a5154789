package config

import (
	"errors"
	"fmt"
	"math"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if math.IsNaN(d.Downscale) || (d.Downscale != 0 && d.Downscale < 1) {
		return fmt.Errorf("detection.downscale must be 0 (auto) or at least 1, got %v", d.Downscale)
	}
	if d.MinWidth <= 0 {
		return errors.New("detection.min_width must be positive")
	}
	for _, field := range []struct {
		name  string
		value int
	}{
		{"detection.frame_skip", d.FrameSkip},
		{"detection.min_cut_spacing", d.MinCutSpacing},
		{"detection.min_scene_len", d.MinSceneLen},
		{"detection.merge_len", d.MergeLen},
		{"detection.merge_max_gap", d.MergeMaxGap},
	} {
		if field.value < 0 {
			return fmt.Errorf("%s must not be negative, got %d", field.name, field.value)
		}
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.FFmpegBinary == "" {
		return errors.New("media.ffmpeg_binary must be set")
	}
	if c.Media.FFprobeBinary == "" {
		return errors.New("media.ffprobe_binary must be set")
	}
	if c.Media.ProbeCacheMinutes < 0 {
		return errors.New("media.probe_cache_minutes must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
