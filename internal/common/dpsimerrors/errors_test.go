package dpsimerrors

import (
	"context"
	"net/http"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestHttpStatusFromError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":                                {nil, http.StatusOK},
		"ErrInvalidArgument":                 {&ErrInvalidArgument{}, http.StatusBadRequest},
		"ErrArchive":                         {&ErrArchive{}, http.StatusUnprocessableEntity},
		"ErrNotFound":                        {&ErrNotFound{}, http.StatusNotFound},
		"ErrStoreUnavailable":                {&ErrStoreUnavailable{}, http.StatusServiceUnavailable},
		"ErrPublishUnavailable":              {&ErrPublishUnavailable{}, http.StatusBadGateway},
		"ErrCounterCorrupt":                  {&ErrCounterCorrupt{}, http.StatusInternalServerError},
		"pkg.Error => ErrInvalidArgument":    {errors.WithMessage(&ErrInvalidArgument{}, "foo"), http.StatusBadRequest},
		"pkg.Error => ErrStoreUnavailable":   {errors.WithStack(&ErrStoreUnavailable{}), http.StatusServiceUnavailable},
		"multierror => ErrInvalidArgument":   {multierror.Append(nil, &ErrInvalidArgument{}, &ErrInvalidArgument{}), http.StatusBadRequest},
		"deadline exceeded":                  {errors.Wrap(context.DeadlineExceeded, "foo"), http.StatusGatewayTimeout},
		"cancelled":                          {errors.WithStack(context.Canceled), http.StatusGatewayTimeout},
		"pkg.Error":                          {errors.New("foo"), http.StatusInternalServerError},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, HttpStatusFromError(tc.err))
		})
	}
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(errors.WithStack(&ErrArchive{Reason: "bad"})))
	assert.True(t, IsClientError(&ErrInvalidArgument{Name: "model_id"}))
	assert.False(t, IsClientError(&ErrStoreUnavailable{Op: "INCR", Err: errors.New("refused")}))
	assert.False(t, IsClientError(nil))
}

func TestErrNotFound_Error(t *testing.T) {
	err := &ErrNotFound{Type: "simulation", Value: "7"}
	assert.Equal(t, `resource "7" of type "simulation" does not exist`, err.Error())
}

func TestErrStoreUnavailable_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := errors.WithStack(&ErrStoreUnavailable{Op: "GET", Err: cause})
	assert.True(t, errors.Is(err, cause))
}
