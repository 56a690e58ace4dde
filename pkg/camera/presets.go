package camera

import (
	"fmt"
	"slices"
	"sort"
)

// size is a capture mode a preset expands to.
type size struct {
	width, height, fps int
}

// presets maps names to capture modes. Face mesh inference runs on a
// 192x192 crop, so vga is usually enough.
var presets = map[string]size{
	"vga":   {640, 480, 30},
	"720p":  {1280, 720, 30},
	"1080p": {1920, 1080, 30},
	"fast":  {640, 480, 60},
}

// PresetNames returns the known preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset fills Width, Height and Framerate from c.Preset.
// An explicit size wins: the preset only sets fields that are still zero.
func (c *Config) ApplyPreset() error {
	if c.Preset == "" {
		return nil
	}
	s, ok := presets[c.Preset]
	if !ok {
		return fmt.Errorf("unknown preset %q (known: %v)", c.Preset, PresetNames())
	}
	if c.Width == 0 && c.Height == 0 {
		c.Width, c.Height = s.width, s.height
	}
	if c.Framerate == 0 {
		c.Framerate = s.fps
	}
	return nil
}

func knownPreset(name string) bool {
	return name == "" || slices.Contains(PresetNames(), name)
}
