package validation

import (
	"io"
	"mime/multipart"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
)

const (
	FieldSimulationType = "simulation_type"
	FieldModelId        = "model_id"
	FieldName           = "name"
	FieldLoadProfileId  = "load_profile_id"
	// Form fields named "parameters.<key>" end up in Simulation.Parameters[<key>].
	FieldParameterPrefix = "parameters."
	FieldAttachments     = "file"
)

// SimulationForm is a submission as received from a client. Nothing in it has been validated.
type SimulationForm struct {
	Fields      map[string][]string
	Attachments []Attachment
}

// Attachment is one uploaded file; either a single profile or an archive of profiles.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Value returns the first value of a form field, or "" if it wasn't sent.
func (f *SimulationForm) Value(field string) string {
	if values := f.Fields[field]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// FormFromMultipart copies a parsed multipart request into a SimulationForm.
// Uploaded files are read into memory here; failures reading them are reported as invalid input.
func FormFromMultipart(mf *multipart.Form) (*SimulationForm, error) {
	if mf == nil {
		return nil, errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    "form",
			Value:   "",
			Message: "request is not a multipart form",
		})
	}
	form := &SimulationForm{Fields: mf.Value}
	if form.Fields == nil {
		form.Fields = map[string][]string{}
	}

	// Iterate in a stable order so that error messages and attachment order are reproducible.
	fieldNames := make([]string, 0, len(mf.File))
	for fieldName := range mf.File {
		fieldNames = append(fieldNames, fieldName)
	}
	sort.Strings(fieldNames)

	var result *multierror.Error
	for _, fieldName := range fieldNames {
		for _, header := range mf.File[fieldName] {
			attachment, err := readAttachment(fieldName, header)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			form.Attachments = append(form.Attachments, attachment)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return form, nil
}

func readAttachment(fieldName string, header *multipart.FileHeader) (Attachment, error) {
	name := fieldName
	if header.Filename != "" {
		name = path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	}

	f, err := header.Open()
	if err != nil {
		return Attachment{}, errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    fieldName,
			Value:   header.Filename,
			Message: "could not open uploaded file: " + err.Error(),
		})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Attachment{}, errors.WithStack(&dpsimerrors.ErrInvalidArgument{
			Name:    fieldName,
			Value:   header.Filename,
			Message: "could not read uploaded file: " + err.Error(),
		})
	}
	return Attachment{
		Name:        name,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
