// Package client is a Go client for the dpsim api.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/sogno-platform/dpsim-api/pkg/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Client struct {
	baseUrl string
	http    *retryablehttp.Client
}

// ApiError is returned for every non-2xx response.
type ApiError struct {
	StatusCode int
	Response   api.ErrorResponse
}

func (e *ApiError) Error() string {
	s := fmt.Sprintf("%d %s", e.StatusCode, e.Response.Error)
	if e.Response.Stage != "" {
		s += fmt.Sprintf(" (stage %s)", e.Response.Stage)
	}
	if e.Response.SimulationId != 0 {
		s += fmt.Sprintf(" for simulation %d", e.Response.SimulationId)
	}
	for _, detail := range e.Response.Details {
		s += "\n  " + detail
	}
	return s
}

type File struct {
	Name string
	Data []byte
}

type SubmitRequest struct {
	SimulationType api.SimulationType
	ModelId        string
	Name           string
	LoadProfileId  string
	Parameters     map[string]string
	// Profile files or zip archives of profile files.
	Files []File
}

// Submit sends a new simulation. Submissions are not retried, since a retry after a
// lost response would create a second simulation.
func (c *Client) Submit(ctx context.Context, request *SubmitRequest) (*api.SubmitResponse, error) {
	body, contentType, err := encodeForm(request)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+"/simulation", bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	response := &api.SubmitResponse{}
	if err := decodeResponse(resp, http.StatusAccepted, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) GetSimulation(ctx context.Context, id uint64) (*api.Simulation, error) {
	simulation := &api.Simulation{}
	err := c.do(ctx, http.MethodGet, "/simulation/"+strconv.FormatUint(id, 10), http.StatusOK, simulation)
	if err != nil {
		return nil, err
	}
	return simulation, nil
}

func (c *Client) ListSimulations(ctx context.Context, offset uint64, limit int) ([]*api.Simulation, error) {
	query := url.Values{}
	query.Set("offset", strconv.FormatUint(offset, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var simulations []*api.Simulation
	if err := c.do(ctx, http.MethodGet, "/simulation?"+query.Encode(), http.StatusOK, &simulations); err != nil {
		return nil, err
	}
	return simulations, nil
}

func (c *Client) Routes(ctx context.Context) ([]api.Route, error) {
	var routes []api.Route
	if err := c.do(ctx, http.MethodGet, "/api", http.StatusOK, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// Republish asks the api to hand a stored simulation to the workers again.
func (c *Client) Republish(ctx context.Context, id uint64) (*api.SubmitResponse, error) {
	response := &api.SubmitResponse{}
	path := "/simulation/" + strconv.FormatUint(id, 10) + "/publish"
	if err := c.do(ctx, http.MethodPost, path, http.StatusAccepted, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) do(ctx context.Context, method, path string, expectedStatus int, result interface{}) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseUrl+path, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	return decodeResponse(resp, expectedStatus, result)
}

func decodeResponse(resp *http.Response, expectedStatus int, result interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}
	if resp.StatusCode != expectedStatus {
		apiErr := &ApiError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, &apiErr.Response); err != nil || apiErr.Response.Error == "" {
			apiErr.Response = api.ErrorResponse{Error: http.StatusText(resp.StatusCode)}
		}
		return apiErr
	}
	if err := json.Unmarshal(body, result); err != nil {
		return errors.Wrapf(err, "could not decode response from %s", resp.Request.URL)
	}
	return nil
}

func encodeForm(request *SubmitRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"simulation_type": string(request.SimulationType),
		"model_id":        request.ModelId,
		"name":            request.Name,
		"load_profile_id": request.LoadProfileId,
	}
	for k, v := range request.Parameters {
		fields["parameters."+k] = v
	}
	names := make([]string, 0, len(fields))
	for name, value := range fields {
		if value != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, "", errors.WithStack(err)
		}
	}

	for _, f := range request.Files {
		part, err := w.CreateFormFile("file", f.Name)
		if err != nil {
			return nil, "", errors.WithStack(err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", errors.WithStack(err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.WithStack(err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
