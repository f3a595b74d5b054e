package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("get run: %w", ErrRunNotFound)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrInvalidPlan))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrPublishFailed))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))

	be := Invalid(ErrInvalidPlan, "steps or preset is required")
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(be))
	assert.ErrorIs(t, be, ErrInvalidPlan)
	assert.Equal(t, 422, HTTPStatus(NewBusinessError(422, "unprocessable")))
}
