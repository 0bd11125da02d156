// Package config holds the server framework's TOML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Config is the server configuration, read from a TOML file.
type Config struct {
	Network Network `toml:"network"`
	World   World   `toml:"world"`
}

// Network configures the connection codec.
type Network struct {
	// Address is the address the server binds to.
	Address string `toml:"address"`
	// CompressionThreshold is the minimum packet payload size that gets
	// zlib-compressed. Negative disables compression.
	CompressionThreshold int32 `toml:"compression_threshold"`
}

// World configures the dimension and its on-disk storage.
type World struct {
	// Folder is the world directory containing `region/`.
	Folder string `toml:"folder"`
	// ViewDistance is the radius, in chunks, of each client's view.
	ViewDistance int32 `toml:"view_distance"`
	// Height is the world height in blocks; a multiple of 16.
	Height int `toml:"height"`
	// MinY is the lowest block Y coordinate.
	MinY int `toml:"min_y"`
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		Network: Network{
			Address:              ":25565",
			CompressionThreshold: 256,
		},
		World: World{
			Folder:       "world",
			ViewDistance: 10,
			Height:       384,
			MinY:         -64,
		},
	}
}

// Load reads the configuration at path. If the file does not exist it is
// created with the defaults, so operators have something to edit.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		out, err := toml.Marshal(cfg)
		if err != nil {
			return cfg, fmt.Errorf("encoding default config: %w", err)
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return cfg, fmt.Errorf("creating default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if cfg.World.Height <= 0 || cfg.World.Height%16 != 0 {
		return Config{}, fmt.Errorf("world height %d is not a positive multiple of 16", cfg.World.Height)
	}
	return cfg, nil
}
