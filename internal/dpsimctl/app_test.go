package dpsimctl

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogno-platform/dpsim-api/pkg/api"
	"github.com/sogno-platform/dpsim-api/pkg/client"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func testApp(t *testing.T, handler http.HandlerFunc) (*App, *bytes.Buffer) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	buf := new(bytes.Buffer)
	return &App{
		Params: &Params{ApiConnectionDetails: &client.ApiConnectionDetails{Url: server.URL}},
		Out:    buf,
	}, buf
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	data, _ := json.Marshal(body)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func TestSubmit(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "profile.csv")
	require.NoError(t, os.WriteFile(profile, []byte("0,1.0"), 0o600))

	app, out := testApp(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "profile.csv", r.MultipartForm.File["file"][0].Filename)
		respond(w, http.StatusAccepted, &api.SubmitResponse{SimulationId: 9})
	})

	err := app.Submit(&SubmitParams{SimulationType: "Powerflow", ModelId: "1", Files: []string{profile}})
	require.NoError(t, err)
	assert.Equal(t, "Submitted simulation 9\n", out.String())
}

func TestSubmit_MissingFile(t *testing.T) {
	app, _ := testApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	err := app.Submit(&SubmitParams{SimulationType: "Powerflow", ModelId: "1", Files: []string{"/does/not/exist.csv"}})
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	app, out := testApp(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, &api.Simulation{
			SimulationId:    4,
			SimulationType:  api.SimulationTypeOutage,
			ModelId:         "1",
			Status:          api.SimulationStatusIncomplete,
			Error:           "invalid archive",
			LoadProfileData: []string{"a.csv"},
			Created:         time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC),
		})
	})

	require.NoError(t, app.Get(4, OutputText))
	assert.Contains(t, out.String(), "Id:")
	assert.Contains(t, out.String(), "Outage")
	assert.Contains(t, out.String(), "Incomplete")
	assert.Contains(t, out.String(), "invalid archive")
	assert.Contains(t, out.String(), "2022-10-01T00:00:00Z")
}

func TestGet_Yaml(t *testing.T) {
	app, out := testApp(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, &api.Simulation{
			SimulationId:   4,
			SimulationType: api.SimulationTypePowerflow,
			ModelId:        "1",
			Parameters:     map[string]string{"solver": "NRP"},
			Status:         api.SimulationStatusStored,
			Created:        time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC),
		})
	})

	require.NoError(t, app.Get(4, OutputYaml))
	assert.Contains(t, out.String(), "simulation_id: 4\n")
	assert.Contains(t, out.String(), "simulation_type: Powerflow\n")
	assert.Contains(t, out.String(), "parameters:\n  solver: NRP\n")
}

func TestGet_UnknownOutput(t *testing.T) {
	app, _ := testApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	assert.Error(t, app.Get(4, "xml"))
}

func TestList(t *testing.T) {
	app, out := testApp(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []*api.Simulation{
			{SimulationId: 1, SimulationType: api.SimulationTypePowerflow, ModelId: "1", Status: api.SimulationStatusStored},
			{SimulationId: 2, SimulationType: api.SimulationTypeOutage, ModelId: "2", Status: api.SimulationStatusStored},
		})
	})

	require.NoError(t, app.List(0, 10))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.True(t, bytes.HasPrefix(lines[0], []byte("ID")))
	assert.Contains(t, string(lines[2]), "Outage")
}

func TestRoutes(t *testing.T) {
	app, out := testApp(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []api.Route{{Name: "get_api", Method: "GET", Path: "/api", Doc: "Lists the endpoints"}})
	})

	require.NoError(t, app.Routes())
	assert.Equal(t, "GET  /api  Lists the endpoints\n", out.String())
}

func TestRepublish_Error(t *testing.T) {
	app, _ := testApp(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusBadRequest, &api.ErrorResponse{Error: "Bad Request", Details: []string{"incomplete"}})
	})

	err := app.Republish(3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
}
