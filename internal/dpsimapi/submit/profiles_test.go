package submit

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogno-platform/dpsim-api/internal/common/dpsimerrors"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/archive"
	"github.com/sogno-platform/dpsim-api/internal/dpsimapi/validation"
)

func TestCollectProfileData(t *testing.T) {
	data, err := collectProfileData([]validation.Attachment{
		zipAttachment(t, "week.zip", map[string]string{"mon.csv": "1", "tue.csv": "2"}),
		{Name: "wed.csv", Data: []byte("3")},
	}, archive.DefaultLimits)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"mon.csv": []byte("1"),
		"tue.csv": []byte("2"),
		"wed.csv": []byte("3"),
	}, data)
}

func TestCollectProfileData_Limits(t *testing.T) {
	tests := map[string]struct {
		attachments []validation.Attachment
		limits      archive.Limits
	}{
		"plain file too large": {
			attachments: []validation.Attachment{{Name: "a.csv", Data: []byte("12345")}},
			limits:      archive.Limits{MaxEntries: 10, MaxEntrySize: 4, MaxTotalSize: 100},
		},
		"total too large": {
			attachments: []validation.Attachment{
				{Name: "a.csv", Data: []byte("123")},
				{Name: "b.csv", Data: []byte("456")},
			},
			limits: archive.Limits{MaxEntries: 10, MaxEntrySize: 4, MaxTotalSize: 5},
		},
		"unsafe name": {
			attachments: []validation.Attachment{{Name: "../a.csv", Data: []byte("1")}},
			limits:      archive.DefaultLimits,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := collectProfileData(tc.attachments, tc.limits)
			var e *dpsimerrors.ErrArchive
			assert.True(t, errors.As(err, &e), "expected ErrArchive, got %v", err)
		})
	}
}
