package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Only the flags listed below are considered; everything else in args is
// filtered out with flagx.FilterArgs so other loaders can share the command
// line.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-o", "-i", "-n", "-u", "-m", "-l"})

	fs := flag.NewFlagSet("fieldsync", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the remote API")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database")
	fs.StringVar(&cfg.OwnerID, "o", cfg.OwnerID, "owner id whose inspections are pulled")
	fs.StringVar(&cfg.Mode, "m", cfg.Mode, "mode: run, once or status")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.IntVar(&cfg.UploadConcurrency, "u", cfg.UploadConcurrency, "parallel asset uploads")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	onlineCheckInterval := fs.Int("n", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
		case "n":
			cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
		}
	})
	return nil
}
