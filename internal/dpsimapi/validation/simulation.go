package validation

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/pkg/api"
)

const maxFieldLength = 1024

type formValidator interface {
	Validate(form *SimulationForm) error
}

var formValidators = []formValidator{
	singleValueValidator{fields: []string{FieldSimulationType, FieldModelId, FieldName, FieldLoadProfileId}},
	simulationTypeValidator{},
	modelIdValidator{},
	fieldLengthValidator{},
	parameterValidator{},
	attachmentValidator{},
}

// ParseSimulationForm validates an untrusted form and converts it into a Simulation without an id.
// Every problem found is reported; the returned error is a *multierror.Error of
// *dpsimerrors.ErrInvalidArgument, one per offending field.
func ParseSimulationForm(form *SimulationForm) (*api.Simulation, error) {
	if form == nil {
		return nil, errors.WithStack(&dpsimerrors.ErrInvalidArgument{Name: "form", Value: "", Message: "form is missing"})
	}

	var result *multierror.Error
	for _, v := range formValidators {
		if err := v.Validate(form); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	// Validated above.
	simulationType, _ := api.ParseSimulationType(form.Value(FieldSimulationType))
	return &api.Simulation{
		SimulationType: simulationType,
		ModelId:        strings.TrimSpace(form.Value(FieldModelId)),
		Name:           form.Value(FieldName),
		LoadProfileId:  form.Value(FieldLoadProfileId),
		Parameters:     parameters(form),
	}, nil
}

func parameters(form *SimulationForm) map[string]string {
	var params map[string]string
	for field, values := range form.Fields {
		if !strings.HasPrefix(field, FieldParameterPrefix) || len(values) == 0 {
			continue
		}
		if params == nil {
			params = map[string]string{}
		}
		params[strings.TrimPrefix(field, FieldParameterPrefix)] = values[0]
	}
	return params
}

type singleValueValidator struct {
	fields []string
}

func (v singleValueValidator) Validate(form *SimulationForm) error {
	var result *multierror.Error
	for _, field := range v.fields {
		if values := form.Fields[field]; len(values) > 1 {
			result = multierror.Append(result, &dpsimerrors.ErrInvalidArgument{
				Name:    field,
				Value:   strings.Join(values, ","),
				Message: fmt.Sprintf("expected a single value, got %d", len(values)),
			})
		}
	}
	return result.ErrorOrNil()
}

type simulationTypeValidator struct{}

func (v simulationTypeValidator) Validate(form *SimulationForm) error {
	value := form.Value(FieldSimulationType)
	if value == "" {
		return &dpsimerrors.ErrInvalidArgument{
			Name:    FieldSimulationType,
			Value:   value,
			Message: "simulation_type is a required field",
		}
	}
	if _, ok := api.ParseSimulationType(value); !ok {
		return &dpsimerrors.ErrInvalidArgument{
			Name:    FieldSimulationType,
			Value:   value,
			Message: fmt.Sprintf("must be one of %v", api.SimulationTypes),
		}
	}
	return nil
}

type modelIdValidator struct{}

func (v modelIdValidator) Validate(form *SimulationForm) error {
	value := form.Value(FieldModelId)
	if strings.TrimSpace(value) == "" {
		return &dpsimerrors.ErrInvalidArgument{
			Name:    FieldModelId,
			Value:   value,
			Message: "model_id is a required field",
		}
	}
	return nil
}

type fieldLengthValidator struct{}

func (v fieldLengthValidator) Validate(form *SimulationForm) error {
	var result *multierror.Error
	for field, values := range form.Fields {
		for _, value := range values {
			if len(value) > maxFieldLength {
				result = multierror.Append(result, &dpsimerrors.ErrInvalidArgument{
					Name:    field,
					Value:   value[:32] + "...",
					Message: fmt.Sprintf("value is longer than %d bytes", maxFieldLength),
				})
			}
		}
	}
	return result.ErrorOrNil()
}

type parameterValidator struct{}

func (v parameterValidator) Validate(form *SimulationForm) error {
	for field := range form.Fields {
		if field == FieldParameterPrefix {
			return &dpsimerrors.ErrInvalidArgument{
				Name:    field,
				Value:   "",
				Message: "parameter name must not be empty",
			}
		}
	}
	return nil
}

type attachmentValidator struct{}

func (v attachmentValidator) Validate(form *SimulationForm) error {
	var result *multierror.Error
	seen := make(map[string]bool, len(form.Attachments))
	for _, a := range form.Attachments {
		if a.Name == "" || a.Name == "." || a.Name == "/" {
			result = multierror.Append(result, &dpsimerrors.ErrInvalidArgument{
				Name:    FieldAttachments,
				Value:   a.Name,
				Message: "uploaded file has no name",
			})
			continue
		}
		if seen[a.Name] {
			result = multierror.Append(result, &dpsimerrors.ErrInvalidArgument{
				Name:    FieldAttachments,
				Value:   a.Name,
				Message: "more than one uploaded file has this name",
			})
		}
		seen[a.Name] = true
	}
	return result.ErrorOrNil()
}
