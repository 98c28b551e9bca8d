package config

import (
	"github.com/charmbracelet/huh"
)

var runFormFunc = func(form *huh.Form) error { return form.Run() }

// Prompt asks for the device settings and the adb path, starting from the
// values already in cfg, and stores the answers back into cfg.
func Prompt(cfg *Config) error {
	databasePath := cfg.Device.DatabasePath
	adbPath := cfg.Bridge.Path
	language := cfg.Device.PhoneLanguage
	timezone := cfg.Device.Timezone

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Please choose a database path").
				Description("Pulled files are stored here.").
				Value(&databasePath),
			huh.NewInput().
				Title("Path to adb").
				Description("Leave empty to use $ADB_PATH or adb from PATH.").
				Value(&adbPath),
			huh.NewSelect[string]().
				Title("Phone language").
				Options(huh.NewOptions(Languages...)...).
				Value(&language),
			huh.NewSelect[string]().
				Title("Timezone").
				Options(huh.NewOptions(Timezones...)...).
				Value(&timezone),
		),
	)
	if err := runFormFunc(form); err != nil {
		return err
	}

	cfg.Device.DatabasePath = databasePath
	cfg.Bridge.Path = adbPath
	cfg.Device.PhoneLanguage = language
	cfg.Device.Timezone = timezone
	return cfg.expand()
}

// Create prompts for a new config and writes it to path.
func Create(path string) (*Config, error) {
	cfg := Default()
	if err := Prompt(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
