package server

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/common/util"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/archive"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/repository"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/submit"
	"github.com/sogno-platform/dpsim-api/pkg/api"
)

type stubPublisher struct {
	err  error
	jobs []*api.JobDescriptor
}

func (p *stubPublisher) Publish(_ context.Context, job *api.JobDescriptor) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *stubPublisher) Check() error { return nil }

func (p *stubPublisher) Close() {}

type testServer struct {
	redis     *miniredis.Miniredis
	publisher *stubPublisher
	handler   http.Handler
}

func withServer(t *testing.T, action func(ts *testServer)) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: 0})
	defer client.Close()

	pub := &stubPublisher{}
	submitter := submit.NewSimulationSubmitter(
		repository.NewRedisSimulationRepository(client),
		repository.NewRedisProfileRepository(client),
		pub,
		nil,
		archive.DefaultLimits,
		&util.UTCClock{})

	action(&testServer{
		redis:     s,
		publisher: pub,
		handler:   NewSimulationServer(submitter, 1<<20, 5*time.Second, "https://docs.example.com/dpsim-api"),
	})
}

type upload struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, fields map[string]string, files ...upload) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile("file", f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/simulation", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"simulation_type": "Powerflow",
		"model_id":        "1",
		"load_profile_id": "2",
	}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *api.ErrorResponse {
	response := &api.ErrorResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), response), rec.Body.String())
	return response
}

func TestGetRoot_RedirectsToApi(t *testing.T) {
	withServer(t, func(ts *testServer) {
		rec := serve(ts.handler, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/api", rec.Header().Get("Location"))
	})
}

func TestGetApi_ListsRoutes(t *testing.T) {
	withServer(t, func(ts *testServer) {
		rec := serve(ts.handler, httptest.NewRequest(http.MethodGet, "/api", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var routes []api.Route
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
		names := make([]string, 0, len(routes))
		for _, route := range routes {
			names = append(names, route.Name)
			assert.Equal(t, "https://docs.example.com/dpsim-api#"+route.Name, route.Link)
		}
		assert.Equal(t, []string{
			"get_root",
			"get_api",
			"get_simulations",
			"post_simulation",
			"get_simulation",
			"republish_simulation",
		}, names)
	})
}

func TestPostSimulation_Accepted(t *testing.T) {
	withServer(t, func(ts *testServer) {
		rec := serve(ts.handler, multipartRequest(t, validFields(), upload{name: "profile.csv", data: []byte("0,1.0")}))
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		response := &api.SubmitResponse{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), response))
		assert.Equal(t, uint64(1), response.SimulationId)
		assert.Equal(t, api.SimulationTypePowerflow, response.Simulation.SimulationType)
		assert.Equal(t, []string{"profile.csv"}, response.Simulation.LoadProfileData)
		assert.Len(t, ts.publisher.jobs, 1)

		get := serve(ts.handler, httptest.NewRequest(http.MethodGet, "/simulation/1", nil))
		require.Equal(t, http.StatusOK, get.Code)
		simulation := &api.Simulation{}
		require.NoError(t, json.Unmarshal(get.Body.Bytes(), simulation))
		assert.Equal(t, "1", simulation.ModelId)
	})
}

func TestPostSimulation_Rejected(t *testing.T) {
	tests := map[string]struct {
		request        func(t *testing.T) *http.Request
		expectedStatus int
		expectedStage  string
	}{
		"unknown simulation type": {
			request: func(t *testing.T) *http.Request {
				fields := validFields()
				fields["simulation_type"] = "Blackout"
				return multipartRequest(t, fields)
			},
			expectedStatus: http.StatusBadRequest,
			expectedStage:  "validation",
		},
		"not multipart": {
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/simulation", strings.NewReader(`{"model_id": "1"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			expectedStatus: http.StatusBadRequest,
			expectedStage:  "validation",
		},
		"too large": {
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, validFields(), upload{name: "big.csv", data: bytes.Repeat([]byte("x"), 2<<20)})
			},
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedStage:  "validation",
		},
		"corrupt archive": {
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, validFields(), upload{name: "profiles.zip", data: []byte("PK\x03\x04 broken")})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedStage:  "ingest",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			withServer(t, func(ts *testServer) {
				rec := serve(ts.handler, tc.request(t))
				assert.Equal(t, tc.expectedStatus, rec.Code, rec.Body.String())

				response := decodeError(t, rec)
				assert.Equal(t, tc.expectedStage, response.Stage)
				assert.NotEmpty(t, response.Details)
				assert.Empty(t, ts.publisher.jobs)
			})
		})
	}
}

func TestPostSimulation_ReportsEveryInvalidField(t *testing.T) {
	withServer(t, func(ts *testServer) {
		rec := serve(ts.handler, multipartRequest(t, map[string]string{"simulation_type": "Blackout"}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Len(t, decodeError(t, rec).Details, 2)
	})
}

func TestPostSimulation_PublishFailureIsOpaque(t *testing.T) {
	withServer(t, func(ts *testServer) {
		ts.publisher.err = &dpsimerrors.ErrPublishUnavailable{Channel: "dpsim.simulations", Err: fmt.Errorf("secret broker detail")}

		rec := serve(ts.handler, multipartRequest(t, validFields()))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret broker detail")

		response := decodeError(t, rec)
		assert.Equal(t, "publish", response.Stage)
		assert.Equal(t, uint64(1), response.SimulationId)
		assert.Empty(t, response.Details)
	})
}

func TestPostSimulation_StoreUnavailable(t *testing.T) {
	withServer(t, func(ts *testServer) {
		ts.redis.Close()

		rec := serve(ts.handler, multipartRequest(t, validFields()))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		response := decodeError(t, rec)
		assert.Equal(t, "allocation", response.Stage)
		assert.Empty(t, response.Details)
	})
}

func TestGetSimulation_Errors(t *testing.T) {
	withServer(t, func(ts *testServer) {
		assert.Equal(t, http.StatusNotFound, serve(ts.handler, httptest.NewRequest(http.MethodGet, "/simulation/99", nil)).Code)
		assert.Equal(t, http.StatusBadRequest, serve(ts.handler, httptest.NewRequest(http.MethodGet, "/simulation/abc", nil)).Code)
		assert.Equal(t, http.StatusBadRequest, serve(ts.handler, httptest.NewRequest(http.MethodGet, "/simulation/0", nil)).Code)
	})
}

func TestGetSimulations(t *testing.T) {
	withServer(t, func(ts *testServer) {
		for i := 0; i < 3; i++ {
			require.Equal(t, http.StatusAccepted, serve(ts.handler, multipartRequest(t, validFields())).Code)
		}

		rec := serve(ts.handler, httptest.NewRequest(http.MethodGet, "/simulation?offset=1&limit=1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var simulations []*api.Simulation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &simulations))
		require.Len(t, simulations, 1)
		assert.Equal(t, uint64(2), simulations[0].SimulationId)

		assert.Equal(t, http.StatusBadRequest, serve(ts.handler, httptest.NewRequest(http.MethodGet, "/simulation?limit=0", nil)).Code)
		assert.Equal(t, http.StatusBadRequest, serve(ts.handler, httptest.NewRequest(http.MethodGet, "/simulation?offset=-1", nil)).Code)
	})
}

func TestRepublishSimulation(t *testing.T) {
	withServer(t, func(ts *testServer) {
		ts.publisher.err = &dpsimerrors.ErrPublishUnavailable{Channel: "dpsim.simulations", Err: fmt.Errorf("broker down")}
		require.Equal(t, http.StatusBadGateway, serve(ts.handler, multipartRequest(t, validFields())).Code)

		ts.publisher.err = nil
		rec := serve(ts.handler, httptest.NewRequest(http.MethodPost, "/simulation/1/publish", nil))
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		assert.Len(t, ts.publisher.jobs, 1)

		missing := serve(ts.handler, httptest.NewRequest(http.MethodPost, "/simulation/9/publish", nil))
		assert.Equal(t, http.StatusNotFound, missing.Code)
	})
}
