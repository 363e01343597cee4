// Package config holds the settings of the engine and loads them from TOML
// files.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/shaders"
)

// Shader names a compiled SPIR-V file and the stage it is for.
type Shader struct {
	Path  string        `toml:"path"`
	Stage shaders.Stage `toml:"stage"`
}

// Config is everything the engine can be told from the outside.
type Config struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`

	Shaders []Shader `toml:"shaders"`

	MaxFramesInFlight int `toml:"max_frames_in_flight"`

	// Texture is the image sampled by the fragment shader. A checkerboard is
	// used when it is empty.
	Texture string `toml:"texture"`

	// Model is an OBJ file to draw instead of the built-in quad.
	Model string `toml:"model"`

	// Spin rotates the model in radians per second.
	Spin float32 `toml:"spin"`

	// Debug enables the validation layers.
	Debug bool `toml:"debug"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Title:  "Calico",
		Width:  800,
		Height: 600,
		Shaders: []Shader{
			{Path: "shaders/vert.spv", Stage: shaders.StageVertex},
			{Path: "shaders/frag.spv", Stage: shaders.StageFragment},
		},
		MaxFramesInFlight: 2,
	}
}

// Load reads the TOML file at path on top of Default. Keys which do not
// correspond to a setting are an error.
func Load(path string) (Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "opening config")
	}
	defer fh.Close()

	cfg := Default()
	dec := toml.NewDecoder(fh).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, errors.Errorf("%s: %s", path, strict.String())
		}
		return Config{}, errors.Wrapf(err, "decoding %s", path)
	}

	return cfg, cfg.Validate()
}

// Validate reports settings the engine cannot run with.
func (c Config) Validate() error {
	if c.MaxFramesInFlight <= 0 {
		return gpu.Invalidf("max_frames_in_flight must be positive, got %d", c.MaxFramesInFlight)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("invalid window size %dx%d", c.Width, c.Height)
	}
	if len(c.Shaders) == 0 {
		return errors.New("no shaders configured")
	}
	for i, shader := range c.Shaders {
		if shader.Path == "" {
			return errors.Errorf("shader %d has no path", i)
		}
		if _, err := shader.Stage.Flag(); err != nil {
			return errors.Wrapf(err, "shader %s", shader.Path)
		}
	}
	return nil
}

// LoadShaders reads every configured shader file.
func (c Config) LoadShaders() ([]shaders.Source, error) {
	sources := make([]shaders.Source, 0, len(c.Shaders))
	for _, shader := range c.Shaders {
		src, err := shaders.Load(shader.Path, shader.Stage)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}
