package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jrsteele09/account-dashboard/internal/config"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/server"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and optionally reach the identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			validateErr := c.Validate()
			renderSettings(cmd.OutOrStdout(), validateErr)
			if validateErr != nil {
				return fmt.Errorf("configuration is incomplete: %w", validateErr)
			}
			if !probe {
				return nil
			}

			s, err := server.New(c)
			if err != nil {
				return err
			}
			return s.InitialiseSystem(cmd.Context(), true)
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "perform OIDC discovery against OIDC_ISSUER")
	return cmd
}

// renderSettings prints one row per required setting. Values are never shown.
func renderSettings(out io.Writer, validateErr error) {
	var cfgErr *errors.ConfigurationError
	_ = errors.As(validateErr, &cfgErr)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("SETTING"), text.FgHiCyan.Sprint("STATUS")})
	for _, name := range config.RequiredVars {
		t.AppendRow(table.Row{name, settingStatus(name, cfgErr)})
	}
	t.Render()
}

func settingStatus(name string, cfgErr *errors.ConfigurationError) string {
	if cfgErr != nil {
		for _, missing := range cfgErr.Missing {
			if missing == name {
				return text.FgRed.Sprint("missing")
			}
		}
		for _, invalid := range cfgErr.Invalid {
			if invalid == name {
				return text.FgYellow.Sprint("invalid")
			}
		}
	}
	return text.FgGreen.Sprint("ok")
}
