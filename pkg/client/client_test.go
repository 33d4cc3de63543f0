package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogno-platform/dpsim-api/pkg/api"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return CreateApiConnection(&ApiConnectionDetails{Url: server.URL + "/", RetryMax: 0})
}

func writeJson(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func TestSubmit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/simulation", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Outage", r.FormValue("simulation_type"))
		assert.Equal(t, "7", r.FormValue("model_id"))
		assert.Equal(t, "NRP", r.FormValue("parameters.solver"))
		assert.Empty(t, r.MultipartForm.Value["name"])

		files := r.MultipartForm.File["file"]
		require.Len(t, files, 1)
		f, err := files[0].Open()
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "0,1.0", string(data))

		writeJson(t, w, http.StatusAccepted, &api.SubmitResponse{
			SimulationId: 3,
			Simulation:   &api.Simulation{SimulationId: 3, SimulationType: api.SimulationTypeOutage},
		})
	})

	response, err := c.Submit(context.Background(), &SubmitRequest{
		SimulationType: api.SimulationTypeOutage,
		ModelId:        "7",
		Parameters:     map[string]string{"solver": "NRP"},
		Files:          []File{{Name: "profile.csv", Data: []byte("0,1.0")}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), response.SimulationId)
}

func TestSubmit_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJson(t, w, http.StatusBadRequest, &api.ErrorResponse{
			Error:   "Bad Request",
			Stage:   "validation",
			Details: []string{`value "Blackout" is invalid for field "simulation_type"`},
		})
	})

	_, err := c.Submit(context.Background(), &SubmitRequest{SimulationType: "Blackout", ModelId: "1"})
	var apiErr *ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "validation", apiErr.Response.Stage)
	assert.Contains(t, apiErr.Error(), "Blackout")
}

func TestGetSimulation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simulation/5" {
			writeJson(t, w, http.StatusNotFound, &api.ErrorResponse{Error: "Not Found"})
			return
		}
		writeJson(t, w, http.StatusOK, &api.Simulation{SimulationId: 5, ModelId: "1"})
	})

	simulation, err := c.GetSimulation(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "1", simulation.ModelId)

	_, err = c.GetSimulation(context.Background(), 6)
	var apiErr *ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestListSimulations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("offset"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		writeJson(t, w, http.StatusOK, []*api.Simulation{{SimulationId: 11}, {SimulationId: 12}})
	})

	simulations, err := c.ListSimulations(context.Background(), 10, 2)
	require.NoError(t, err)
	require.Len(t, simulations, 2)
	assert.Equal(t, uint64(12), simulations[1].SimulationId)
}

func TestRoutes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJson(t, w, http.StatusOK, []api.Route{{Name: "get_api", Method: http.MethodGet, Path: "/api"}})
	})

	routes, err := c.Routes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []api.Route{{Name: "get_api", Method: http.MethodGet, Path: "/api"}}, routes)
}

func TestRepublish_ServerErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simulation/4/publish", r.URL.Path)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Republish(context.Background(), 4)
	var apiErr *ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Response.Error)
}
