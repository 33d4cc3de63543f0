package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sogno-platform/dpsim-api/internal/dpsimctl"
	"github.com/sogno-platform/dpsim-api/pkg/client"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:          "dpsimctl",
		Short:        "dpsimctl submits and inspects DPsim simulations.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dpsimctl.yaml)")
	client.AddApiConnectionCommandlineArgs(cmd)

	app := dpsimctl.New()
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := client.LoadCommandlineArgsFromConfigFile(cfgFile); err != nil {
			return err
		}
		details, err := client.ExtractCommandlineApiConnectionDetails()
		if err != nil {
			return err
		}
		app.Params.ApiConnectionDetails = details
		app.Out = cmd.OutOrStdout()
		return nil
	}

	cmd.AddCommand(
		submitCmd(app),
		getCmd(app),
		listCmd(app),
		routesCmd(app),
		republishCmd(app),
	)
	return cmd
}
