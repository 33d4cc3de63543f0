// Package server exposes the simulation lifecycle over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/common/requestid"
	"github.com/sogno-platform/dpsim-api/internal/common/router"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/submit"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/validation"
	"github.com/sogno-platform/dpsim-api/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	// Uploaded files above this size are spooled to disk while the form is parsed.
	maxFormMemory = 32 << 20
)

type Submitter interface {
	Submit(ctx context.Context, form *validation.SimulationForm) (*api.Simulation, error)
	Get(ctx context.Context, id uint64) (*api.Simulation, error)
	List(ctx context.Context, offset uint64, limit int) ([]*api.Simulation, error)
	Republish(ctx context.Context, id uint64) (*api.Simulation, error)
}

type SimulationServer struct {
	submitter         Submitter
	maxUploadSize     int64
	submissionTimeout time.Duration
	router            *router.Router
}

// NewSimulationServer routes the api to submitter. Route metadata links into the api
// documentation at documentationUrl, if set.
func NewSimulationServer(submitter Submitter, maxUploadSize int64, submissionTimeout time.Duration, documentationUrl string) *SimulationServer {
	s := &SimulationServer{
		submitter:         submitter,
		maxUploadSize:     maxUploadSize,
		submissionTimeout: submissionTimeout,
		router:            router.New(documentationUrl),
	}
	s.router.GET("/", "get_root", "Redirects to /api", s.getRoot)
	s.router.GET("/api", "get_api", "Lists the endpoints of this service", s.getApi)
	s.router.GET("/simulation", "get_simulations", "Lists simulations; supports offset and limit query parameters", s.getSimulations)
	s.router.POST("/simulation", "post_simulation", "Submits a simulation as a multipart form", s.postSimulation)
	s.router.GET("/simulation/{id}", "get_simulation", "Returns one simulation", s.getSimulation)
	s.router.POST("/simulation/{id}/publish", "republish_simulation", "Hands a stored simulation to the workers again", s.republishSimulation)
	return s
}

func (s *SimulationServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *SimulationServer) getRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/api", http.StatusSeeOther)
}

func (s *SimulationServer) getApi(w http.ResponseWriter, r *http.Request) {
	writeJson(w, r, http.StatusOK, s.router.Routes())
}

func (s *SimulationServer) getSimulations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var offset uint64
	if v := query.Get("offset"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, r, invalidQueryParameter("offset", v, "must be a non-negative integer"))
			return
		}
		offset = parsed
	}
	limit := defaultListLimit
	if v := query.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > maxListLimit {
			writeError(w, r, invalidQueryParameter("limit", v, "must be an integer between 1 and "+strconv.Itoa(maxListLimit)))
			return
		}
		limit = parsed
	}

	simulations, err := s.submitter.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJson(w, r, http.StatusOK, simulations)
}

func (s *SimulationServer) postSimulation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		if isBodyTooLarge(err) {
			writeJson(w, r, http.StatusRequestEntityTooLarge, &api.ErrorResponse{
				Error:   http.StatusText(http.StatusRequestEntityTooLarge),
				Stage:   string(submit.StageValidation),
				Details: []string{"request body exceeds " + strconv.FormatInt(s.maxUploadSize, 10) + " bytes"},
			})
			return
		}
		writeError(w, r, &submit.StageError{
			Stage: submit.StageValidation,
			Err: &dpsimerrors.ErrInvalidArgument{
				Name:    "form",
				Value:   r.Header.Get("Content-Type"),
				Message: "could not parse multipart form: " + err.Error(),
			},
		})
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.WithError(err).Warn("Failed to remove temporary upload files")
		}
	}()

	form, err := validation.FormFromMultipart(r.MultipartForm)
	if err != nil {
		writeError(w, r, &submit.StageError{Stage: submit.StageValidation, Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.submissionTimeout)
	defer cancel()
	simulation, err := s.submitter.Submit(ctx, form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJson(w, r, http.StatusAccepted, &api.SubmitResponse{SimulationId: simulation.SimulationId, Simulation: simulation})
}

func (s *SimulationServer) getSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := simulationId(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	simulation, err := s.submitter.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJson(w, r, http.StatusOK, simulation)
}

func (s *SimulationServer) republishSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := simulationId(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.submissionTimeout)
	defer cancel()
	simulation, err := s.submitter.Republish(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJson(w, r, http.StatusAccepted, &api.SubmitResponse{SimulationId: simulation.SimulationId, Simulation: simulation})
}

func simulationId(r *http.Request) (uint64, error) {
	value := router.Param(r, "id")
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    "id",
			Value:   value,
			Message: "simulation id must be a positive integer",
		})
	}
	return id, nil
}

func invalidQueryParameter(name, value, message string) error {
	return errors.WithStack(&dpsimerrors.ErrInvalidArgument{Name: name, Value: value, Message: message})
}

// http.MaxBytesError only exists from go 1.19 on.
func isBodyTooLarge(err error) bool {
	return strings.Contains(err.Error(), "request body too large")
}

// writeError reports err to the client. Details are only included for errors caused
// by the request; infrastructure errors are logged here and returned without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := dpsimerrors.HttpStatusFromError(err)
	response := &api.ErrorResponse{
		Error: http.StatusText(status),
		Stage: string(submit.StageFromError(err)),
	}
	var stageErr *submit.StageError
	if errors.As(err, &stageErr) {
		response.SimulationId = stageErr.SimulationId
	}

	logger := log.WithField("requestId", requestid.FromContextOrMissing(r.Context())).WithError(err)
	if dpsimerrors.IsClientError(err) {
		response.Details = clientErrorDetails(err)
		logger.Info("Rejected request")
	} else {
		logger.Errorf("Request failed with status %d", status)
	}
	writeJson(w, r, status, response)
}

func clientErrorDetails(err error) []string {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		details := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			details = append(details, e.Error())
		}
		return details
	}
	{
		var e *dpsimerrors.ErrInvalidArgument
		if errors.As(err, &e) {
			return []string{e.Error()}
		}
	}
	{
		var e *dpsimerrors.ErrArchive
		if errors.As(err, &e) {
			return []string{e.Error()}
		}
	}
	{
		var e *dpsimerrors.ErrNotFound
		if errors.As(err, &e) {
			return []string{e.Error()}
		}
	}
	return nil
}

func writeJson(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		log.WithField("requestId", requestid.FromContextOrMissing(r.Context())).WithError(err).Error("Failed to encode response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.WithField("requestId", requestid.FromContextOrMissing(r.Context())).WithError(err).Warn("Failed to write response")
	}
}
