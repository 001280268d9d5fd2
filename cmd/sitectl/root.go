package main

import (
	"fmt"

	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/sitebook/gateway/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// env carries what PersistentPreRunE resolved to the subcommands.
type env struct {
	v      *viper.Viper
	cfg    *config.Config
	client *apiclient.Client
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "sitectl",
		Short: "Inspect and repair SiteBook backend records",
		Long: `sitectl calls the SiteBook backend with an upstream bearer token.

Configuration follows the gateway: SITEBOOK_* environment variables and the
optional file named by SITEBOOK_CONFIG. Flags override both.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("upstream", "", "backend base URL (default from upstream.base_url)")
	flags.String("token", "", "upstream bearer token (default from SITEBOOK_TOKEN)")
	flags.String("site", "0", "site id sent as site_id; 0 means all sites")
	flags.Bool("verbose", false, "log upstream failures")

	root.AddCommand(newListCmd(e))
	root.AddCommand(newGetCmd(e))
	root.AddCommand(newDeleteCmd(e))
	root.AddCommand(newWALinkCmd(e))
	return root
}

func (e *env) init(cmd *cobra.Command) error {
	v, err := config.NewViper()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	for key, flag := range map[string]string{
		"upstream.base_url": "upstream",
		"token":             "token",
		"site":              "site",
		"verbose":           "verbose",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := zap.NewNop()
	if v.GetBool("verbose") {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}

	e.v, e.cfg = v, cfg
	e.client = apiclient.New(apiclient.Options{BaseURL: cfg.UpstreamURL, Timeout: cfg.Timeout}, logger).
		WithSession(apiclient.Session{Token: v.GetString("token"), SiteID: v.GetString("site")})
	return nil
}
