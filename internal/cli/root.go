// Package cli exposes the trivia engine commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"trivia-engine/internal/config"
)

// flags holds command line overrides applied on top of the loaded config.
type flags struct {
	configPath string
	port       string
	publicURL  string
	logLevel   string
	profile    bool
}

// Execute runs the CLI.
func Execute() error {
	// A .env file is optional; real environment variables win over it.
	_ = godotenv.Load()
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	v := viper.New()
	v.SetEnvPrefix(strings.TrimSuffix(config.EnvPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "trivia-engine",
		Short:         "Live multiplayer trivia sessions over HTTP and websockets",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&f.configPath, "config", "c", "config/config.yaml", "path to YAML config (env: TRIVIA_CONFIG)")
	fs.StringVarP(&f.port, "port", "p", "", "port to listen on, overrides server.port (env: TRIVIA_PORT)")
	fs.StringVar(&f.publicURL, "public-url", "", "externally visible base URL used in join QR codes (env: TRIVIA_PUBLIC_URL)")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (env: TRIVIA_LOG_LEVEL)")
	fs.BoolVar(&f.profile, "profile", false, "register pprof handlers (env: TRIVIA_PROFILE)")

	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		var err error
		fs.VisitAll(func(fl *pflag.Flag) {
			_ = v.BindPFlag(fl.Name, fl)
			_ = v.BindEnv(fl.Name)
			if !fl.Changed && v.IsSet(fl.Name) && err == nil {
				err = fs.Set(fl.Name, fmt.Sprintf("%v", v.Get(fl.Name)))
			}
		})
		return err
	}

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.AddCommand(newStartCmd(f), newMigrateCmd(f), newCatalogCmd(f))
	return cmd
}

// load reads the config file and applies the command line overrides.
func (f *flags) load() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if f.port != "" {
		cfg.Server.Port = f.port
	}
	if f.publicURL != "" {
		cfg.Server.PublicURL = f.publicURL
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.profile {
		cfg.Server.Profile = true
	}
	return cfg, nil
}
