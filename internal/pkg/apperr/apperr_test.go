package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/resource-workflow/internal/pkg/apperr"
)

var errSample = apperr.New(apperr.KindDependency, "SAMPLE_BLOCKED", "sample is blocked")

func TestIsMatchesCopies(t *testing.T) {
	detailed := errSample.WithDetails(map[string]interface{}{"count": 2})
	assert.True(t, errors.Is(detailed, errSample))
	assert.True(t, errors.Is(fmt.Errorf("cancel: %w", detailed), errSample))
	assert.Equal(t, 2, apperr.DetailsOf(fmt.Errorf("x: %w", detailed))["count"])
	assert.Nil(t, errSample.Details)
}

func TestIsRejectsOtherCodes(t *testing.T) {
	other := apperr.New(apperr.KindDependency, "OTHER", "other")
	assert.False(t, errors.Is(other, errSample))
	assert.False(t, errors.Is(errors.New("plain"), errSample))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, apperr.KindDependency, apperr.KindOf(fmt.Errorf("wrapped: %w", errSample)))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(errors.New("boom")))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(apperr.Validation("reason is required")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindValidation:    http.StatusBadRequest,
		apperr.KindNotFound:      http.StatusNotFound,
		apperr.KindStateConflict: http.StatusConflict,
		apperr.KindUnauthorized:  http.StatusForbidden,
		apperr.KindDependency:    http.StatusConflict,
		apperr.KindInternal:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus(), string(kind))
	}
}

func TestWrapfKeepsIdentity(t *testing.T) {
	err := errSample.Wrapf("invoice %s", "inv-1")
	assert.Equal(t, "invoice inv-1: sample is blocked", err.Error())
	assert.True(t, errors.Is(err, errSample))
	assert.Equal(t, "SAMPLE_BLOCKED", apperr.CodeOf(err))
}
