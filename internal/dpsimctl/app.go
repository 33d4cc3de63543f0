// Package dpsimctl implements the commands of the dpsimctl command line tool.
// Commands are methods on App so that their output can be captured in tests.
package dpsimctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/sogno-platform/dpsim-api/internal/common/util"
	"github.com/sogno-platform/dpsim-api/pkg/api"
	"github.com/sogno-platform/dpsim-api/pkg/client"
)

const defaultTimeout = 60 * time.Second

// Output formats accepted by Get.
const (
	OutputText = "text"
	OutputYaml = "yaml"
)

type App struct {
	Params *Params
	Out    io.Writer
}

type Params struct {
	ApiConnectionDetails *client.ApiConnectionDetails
}

func New() *App {
	return &App{
		Params: &Params{},
		Out:    os.Stdout,
	}
}

type SubmitParams struct {
	SimulationType string
	ModelId        string
	Name           string
	LoadProfileId  string
	Parameters     map[string]string
	// Paths of profile files or zip archives to upload.
	Files []string
}

func (a *App) Submit(params *SubmitParams) error {
	request := &client.SubmitRequest{
		SimulationType: api.SimulationType(params.SimulationType),
		ModelId:        params.ModelId,
		Name:           params.Name,
		LoadProfileId:  params.LoadProfileId,
		Parameters:     params.Parameters,
	}
	for _, path := range params.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "error reading %s", path)
		}
		request.Files = append(request.Files, client.File{Name: filepath.Base(path), Data: data})
	}

	return client.WithClient(a.Params.ApiConnectionDetails, func(c *client.Client) error {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		response, err := c.Submit(ctx, request)
		if err != nil {
			return errors.WithMessage(err, "error submitting simulation")
		}
		fmt.Fprintf(a.Out, "Submitted simulation %d\n", response.SimulationId)
		return nil
	})
}

func (a *App) Get(id uint64, output string) error {
	if output != OutputText && output != OutputYaml {
		return errors.Errorf("unknown output format %q, expected %s or %s", output, OutputText, OutputYaml)
	}
	return client.WithClient(a.Params.ApiConnectionDetails, func(c *client.Client) error {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		simulation, err := c.GetSimulation(ctx, id)
		if err != nil {
			return errors.WithMessagef(err, "error getting simulation %d", id)
		}
		if output == OutputYaml {
			b, err := yaml.Marshal(simulation)
			if err != nil {
				return errors.Wrapf(err, "error marshalling simulation %d", id)
			}
			fmt.Fprint(a.Out, string(b))
			return nil
		}
		fmt.Fprint(a.Out, describeSimulation(simulation))
		return nil
	})
}

func (a *App) List(offset uint64, limit int) error {
	return client.WithClient(a.Params.ApiConnectionDetails, func(c *client.Client) error {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		simulations, err := c.ListSimulations(ctx, offset, limit)
		if err != nil {
			return errors.WithMessage(err, "error listing simulations")
		}
		w := util.NewTable(2)
		w.Row("ID", "TYPE", "MODEL", "STATUS", "CREATED")
		for _, s := range simulations {
			w.Row(s.SimulationId, s.SimulationType, s.ModelId, s.Status, s.Created.Format(time.RFC3339))
		}
		fmt.Fprint(a.Out, w.String())
		return nil
	})
}

func (a *App) Routes() error {
	return client.WithClient(a.Params.ApiConnectionDetails, func(c *client.Client) error {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		routes, err := c.Routes(ctx)
		if err != nil {
			return errors.WithMessage(err, "error listing routes")
		}
		w := util.NewTable(2)
		for _, r := range routes {
			w.Row(r.Method, r.Path, r.Doc)
		}
		fmt.Fprint(a.Out, w.String())
		return nil
	})
}

func (a *App) Republish(id uint64) error {
	return client.WithClient(a.Params.ApiConnectionDetails, func(c *client.Client) error {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()

		if _, err := c.Republish(ctx, id); err != nil {
			return errors.WithMessagef(err, "error republishing simulation %d", id)
		}
		fmt.Fprintf(a.Out, "Republished simulation %d\n", id)
		return nil
	})
}

func describeSimulation(s *api.Simulation) string {
	w := util.NewTable(1)
	w.Field("Id", s.SimulationId)
	w.Field("Type", s.SimulationType)
	w.Field("Model", s.ModelId)
	if s.Name != "" {
		w.Field("Name", s.Name)
	}
	if s.LoadProfileId != "" {
		w.Field("Load profile", s.LoadProfileId)
	}
	w.Field("Status", s.Status)
	w.Field("Created", s.Created.Format(time.RFC3339))
	if len(s.LoadProfileData) > 0 {
		w.Field("Profiles", strings.Join(s.LoadProfileData, ", "))
	}
	if len(s.Parameters) > 0 {
		keys := make([]string, 0, len(s.Parameters))
		for k := range s.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.Field("Parameter "+k, s.Parameters[k])
		}
	}
	if s.ResultsId != "" {
		w.Field("Results", s.ResultsId)
	}
	if s.Error != "" {
		w.Field("Error", s.Error)
	}
	return w.String()
}
