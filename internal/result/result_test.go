package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinstock/backend/internal/store"
)

func TestSuccessEnvelopeShape(t *testing.T) {
	raw, err := json.Marshal(Success([]string{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":[]}`, string(raw))

	var missing *struct{ ID string }
	raw, err = json.Marshal(Success(missing))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":null}`, string(raw))
}

func TestFailureEnvelopeShape(t *testing.T) {
	raw, err := json.Marshal(Failure[int]("platform not found", CodeNotFound))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"error":"platform not found","code":"NOT_FOUND"}`, string(raw))

	raw, err = json.Marshal(Failure[int]("boom", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"error":"boom"}`, string(raw))
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not ready wins over store code", &store.Error{Op: "record purchase", Code: "42883", Err: store.ErrNotReady}, CodeNotReady},
		{"invalid input", fmt.Errorf("wrap: %w", store.ErrInvalidInput), CodeValidation},
		{"store code preferred", &store.Error{Code: "23505", Err: store.ErrConflict}, "23505"},
		{"check violation keeps sqlstate", &store.Error{Code: "23514", Err: store.ErrInvalidInput}, "23514"},
		{"missing row keeps sqlstate", &store.Error{Code: "P0002", Err: store.ErrNotFound}, "P0002"},
		{"plain conflict", store.ErrConflict, CodeConflict},
		{"plain not found", store.ErrNotFound, CodeNotFound},
		{"unknown", errors.New("connection reset"), CodeStore},
		{"transient with sqlstate", &store.Error{Code: "40001", Err: errors.New("serialization failure")}, "40001"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CodeFor(tc.err))
		})
	}
}

func TestUnwrap(t *testing.T) {
	v, err := Success(7).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = FromError[int](store.ErrNotReady).Unwrap()
	require.Error(t, err)
	var resErr *Error
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, CodeNotReady, resErr.Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusCreated, Success(1).HTTPStatus(http.StatusCreated))
	assert.Equal(t, http.StatusBadRequest, Invalid[int]("bad").HTTPStatus(http.StatusOK))
	assert.Equal(t, http.StatusConflict, Failure[int]("dup", "23505").HTTPStatus(http.StatusOK))
	assert.Equal(t, http.StatusServiceUnavailable, Failure[int]("later", CodeNotReady).HTTPStatus(http.StatusOK))
	assert.Equal(t, http.StatusInternalServerError, Failure[int]("x", CodeStore).HTTPStatus(http.StatusOK))
	assert.Equal(t, http.StatusInternalServerError, Failure[int]("x", "40001").HTTPStatus(http.StatusOK))
}

func TestStatusForStoreCodes(t *testing.T) {
	for _, code := range []string{"23514", "23503", "23502", "22P02", "22023"} {
		assert.Equal(t, http.StatusBadRequest, StatusFor(code), code)
	}
	assert.Equal(t, http.StatusNotFound, StatusFor("P0002"))
	assert.Equal(t, http.StatusNotFound, FromError[int](&store.Error{Op: "record purchase", Code: "P0002", Err: store.ErrNotFound}).HTTPStatus(http.StatusOK))
	assert.Equal(t, http.StatusBadRequest, FromError[int](&store.Error{Op: "update platform", Code: "23514", Err: store.ErrInvalidInput}).HTTPStatus(http.StatusOK))
}
