package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	fileName  = "screencap"
	envPrefix = "SCREENCAP"
)

type Config struct {
	// MonitorIndex -1 leaves the monitor selector unset.
	MonitorIndex    int    `mapstructure:"monitor_index" yaml:"monitor_index"`
	WindowName      string `mapstructure:"window_name" yaml:"window_name"`
	WindowHandle    uint64 `mapstructure:"window_handle" yaml:"window_handle"`
	CursorCapture   string `mapstructure:"cursor_capture" yaml:"cursor_capture"`
	DrawBorder      string `mapstructure:"draw_border" yaml:"draw_border"`
	SecondaryWindow string `mapstructure:"secondary_window" yaml:"secondary_window"`
	DirtyRegion     string `mapstructure:"dirty_region" yaml:"dirty_region"`

	MinimumUpdateIntervalMs int    `mapstructure:"minimum_update_interval_ms" yaml:"minimum_update_interval_ms"`
	ColorFormat             string `mapstructure:"color_format" yaml:"color_format"`

	OutputDir     string `mapstructure:"output_dir" yaml:"output_dir"`
	ImageFormat   string `mapstructure:"image_format" yaml:"image_format"`
	MaxFrames     int    `mapstructure:"max_frames" yaml:"max_frames"`
	SaveWorkers   int    `mapstructure:"save_workers" yaml:"save_workers"`
	SaveQueueSize int    `mapstructure:"save_queue_size" yaml:"save_queue_size"`
	PollTimeoutMs int    `mapstructure:"poll_timeout_ms" yaml:"poll_timeout_ms"`

	StreamAddr    string `mapstructure:"stream_addr" yaml:"stream_addr"`
	StreamQuality int    `mapstructure:"stream_quality" yaml:"stream_quality"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`
}

func Default() *Config {
	return &Config{
		MonitorIndex:            -1,
		CursorCapture:           "on",
		DrawBorder:              "default",
		SecondaryWindow:         "default",
		DirtyRegion:             "default",
		MinimumUpdateIntervalMs: 33,
		ColorFormat:             "bgra8",
		OutputDir:               "frames",
		ImageFormat:             "png",
		MaxFrames:               0,
		SaveWorkers:             2,
		SaveQueueSize:           16,
		PollTimeoutMs:           16,
		StreamAddr:              "127.0.0.1:8787",
		StreamQuality:           75,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

// defaults registers every key so AutomaticEnv can resolve SCREENCAP_*
// variables for keys absent from the config file.
func defaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("monitor_index", cfg.MonitorIndex)
	v.SetDefault("window_name", cfg.WindowName)
	v.SetDefault("window_handle", cfg.WindowHandle)
	v.SetDefault("cursor_capture", cfg.CursorCapture)
	v.SetDefault("draw_border", cfg.DrawBorder)
	v.SetDefault("secondary_window", cfg.SecondaryWindow)
	v.SetDefault("dirty_region", cfg.DirtyRegion)
	v.SetDefault("minimum_update_interval_ms", cfg.MinimumUpdateIntervalMs)
	v.SetDefault("color_format", cfg.ColorFormat)
	v.SetDefault("output_dir", cfg.OutputDir)
	v.SetDefault("image_format", cfg.ImageFormat)
	v.SetDefault("max_frames", cfg.MaxFrames)
	v.SetDefault("save_workers", cfg.SaveWorkers)
	v.SetDefault("save_queue_size", cfg.SaveQueueSize)
	v.SetDefault("poll_timeout_ms", cfg.PollTimeoutMs)
	v.SetDefault("stream_addr", cfg.StreamAddr)
	v.SetDefault("stream_quality", cfg.StreamQuality)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
}

// Load reads cfgFile, or screencap.yaml from the config dir or the working
// directory when cfgFile is empty. A missing default file is not an error.
// SCREENCAP_* environment variables override file values.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	cfg := Default()
	defaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes cfg as YAML to cfgFile, or to the default location when
// cfgFile is empty.
func SaveTo(cfg *Config, cfgFile string) (string, error) {
	v := viper.New()
	v.Set("monitor_index", cfg.MonitorIndex)
	v.Set("window_name", cfg.WindowName)
	v.Set("window_handle", cfg.WindowHandle)
	v.Set("cursor_capture", cfg.CursorCapture)
	v.Set("draw_border", cfg.DrawBorder)
	v.Set("secondary_window", cfg.SecondaryWindow)
	v.Set("dirty_region", cfg.DirtyRegion)
	v.Set("minimum_update_interval_ms", cfg.MinimumUpdateIntervalMs)
	v.Set("color_format", cfg.ColorFormat)
	v.Set("output_dir", cfg.OutputDir)
	v.Set("image_format", cfg.ImageFormat)
	v.Set("max_frames", cfg.MaxFrames)
	v.Set("save_workers", cfg.SaveWorkers)
	v.Set("save_queue_size", cfg.SaveQueueSize)
	v.Set("poll_timeout_ms", cfg.PollTimeoutMs)
	v.Set("stream_addr", cfg.StreamAddr)
	v.Set("stream_quality", cfg.StreamQuality)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_format", cfg.LogFormat)
	v.Set("log_file", cfg.LogFile)

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir(), fileName+".yaml")
	}
	if dir := filepath.Dir(cfgPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	if err := v.WriteConfigAs(cfgPath); err != nil {
		return "", err
	}
	return cfgPath, nil
}

// Dir returns the platform config directory searched by Load.
func Dir() string { return configDir() }

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "screencap")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "screencap")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "screencap")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "screencap")
	}
}
