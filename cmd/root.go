package cmd

import (
	"context"
	"fmt"
	"runtime"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcore "github.com/projecteru2/acipull/cmd/core"
	cmdimages "github.com/projecteru2/acipull/cmd/images"
	cmdothers "github.com/projecteru2/acipull/cmd/others"
	"github.com/projecteru2/acipull/config"
)

var (
	cfgFile string
	conf    *config.Config
)

var rootCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acipull",
		Short: "acipull - ACI image pull tool",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(commandContext(cmd))
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().String("image-root", "", "image root directory")
	cmd.PersistentFlags().String("meta-discovery-url", "", "meta discovery endpoint")

	_ = viper.BindPFlag("image_root", cmd.PersistentFlags().Lookup("image-root"))
	_ = viper.BindPFlag("meta_discovery_url", cmd.PersistentFlags().Lookup("meta-discovery-url"))

	viper.SetEnvPrefix("ACIPULL")
	viper.AutomaticEnv()

	base := cmdcore.BaseHandler{ConfProvider: func() *config.Config { return conf }}

	for _, c := range cmdimages.Commands(cmdimages.Handler{BaseHandler: base}) {
		cmd.AddCommand(c)
	}
	for _, c := range cmdothers.Commands(cmdothers.Handler{BaseHandler: base}) {
		cmd.AddCommand(c)
	}

	return cmd
}()

func initConfig(ctx context.Context) error {
	conf = config.DefaultConfig()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	_ = viper.ReadInConfig() // optional; missing file is OK

	if err := viper.Unmarshal(conf); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if conf.PoolSize <= 0 {
		conf.PoolSize = runtime.NumCPU()
	}
	if conf.PullTimeoutSeconds <= 0 {
		conf.PullTimeoutSeconds = 1800 //nolint:mnd
	}

	return log.SetupLog(ctx, &conf.Log, "")
}

// Execute is the main entry point called from main.go.
func Execute() error {
	ctx, cancel := newCommandContext()
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}
