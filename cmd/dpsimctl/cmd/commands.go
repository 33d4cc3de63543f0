package cmd

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sogno-platform/dpsim-api/internal/dpsimctl"
)

func submitCmd(app *dpsimctl.App) *cobra.Command {
	params := &dpsimctl.SubmitParams{}
	cmd := &cobra.Command{
		Use:   "submit <Powerflow|Outage> <model id> [profile files or zip archives...]",
		Short: "Submit a simulation",
		Long: `Submit a simulation of the given type for a model.

Profile files are uploaded as they are; zip archives are unpacked by the api.

Example:
  dpsimctl submit Powerflow 1 profiles.zip --parameter solver=NRP`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.SimulationType = args[0]
			params.ModelId = args[1]
			params.Files = args[2:]
			return app.Submit(params)
		},
	}
	cmd.Flags().StringVar(&params.Name, "name", "", "human readable name of the simulation")
	cmd.Flags().StringVar(&params.LoadProfileId, "loadProfileId", "", "id of a load profile known to the file service")
	cmd.Flags().StringToStringVar(&params.Parameters, "parameter", nil, "simulation parameter as key=value, may be repeated")
	return cmd
}

func getCmd(app *dpsimctl.App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <simulation id>",
		Short: "Show a simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSimulationId(args[0])
			if err != nil {
				return err
			}
			return app.Get(id, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", dpsimctl.OutputText, "output format, text or yaml")
	return cmd
}

func listCmd(app *dpsimctl.App) *cobra.Command {
	var offset uint64
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List simulations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.List(offset, limit)
		},
	}
	cmd.Flags().Uint64Var(&offset, "offset", 0, "only list simulations with an id greater than this")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of simulations to list")
	return cmd
}

func routesCmd(app *dpsimctl.App) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the endpoints of the api",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Routes()
		},
	}
}

func republishCmd(app *dpsimctl.App) *cobra.Command {
	return &cobra.Command{
		Use:   "republish <simulation id>",
		Short: "Hand a stored simulation to the workers again",
		Long:  "Use this for simulations whose submission failed at the publish stage.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSimulationId(args[0])
			if err != nil {
				return err
			}
			return app.Republish(id)
		},
	}
}

func parseSimulationId(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid simulation id %q", s)
	}
	return id, nil
}
