package submit

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/archive"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/validation"
)

// collectProfileData flattens the uploaded attachments into one profile data set.
// Zip archives are expanded; any other attachment is taken as a single profile file.
func collectProfileData(attachments []validation.Attachment, limits archive.Limits) (map[string][]byte, error) {
	data := map[string][]byte{}
	var total int64
	add := func(name string, content []byte) error {
		if _, exists := data[name]; exists {
			return errors.WithStack(&dpsimerrors.ErrArchive{Entry: name, Reason: "more than one profile has this name"})
		}
		total += int64(len(content))
		if limits.MaxTotalSize > 0 && total > limits.MaxTotalSize {
			return errors.WithStack(&dpsimerrors.ErrArchive{Entry: name, Reason: "uploaded profiles exceed the total size limit"})
		}
		data[name] = content
		return nil
	}

	for _, attachment := range attachments {
		if !archive.IsZip(attachment.Name, attachment.ContentType, attachment.Data) {
			name, err := archive.NormalisePath(attachment.Name)
			if err != nil {
				return nil, err
			}
			if limits.MaxEntrySize > 0 && int64(len(attachment.Data)) > limits.MaxEntrySize {
				return nil, errors.WithStack(&dpsimerrors.ErrArchive{Entry: name, Reason: "profile exceeds the size limit"})
			}
			if err := add(name, attachment.Data); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := archive.ReadZip(attachment.Data, limits)
		if err != nil {
			return nil, err
		}
		for _, name := range sortedNames(entries) {
			if err := add(name, entries[name]); err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}

func sortedNames(data map[string][]byte) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
