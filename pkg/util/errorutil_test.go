package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsKindSeesThroughWrapping(t *testing.T) {
	base := NewStorageError("begin unit of work", errors.New("connection refused"))
	wrapped := fmt.Errorf("run cycle: %w", base)

	assert.True(t, IsKind(wrapped, CodeStorageUnavailable))
	assert.False(t, IsKind(wrapped, CodeConfigInvalid))
	assert.False(t, IsKind(errors.New("plain"), CodeStorageUnavailable))
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	notFound := ToDomainError(fmt.Errorf("lookup: %w", pgx.ErrNoRows))
	require.NotNil(t, notFound)
	assert.Equal(t, CodeNotFound, notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	internal := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)

	cfg := ToDomainError(NewConfigError("parse policy", errors.New("yaml: line 3")))
	assert.Equal(t, CodeConfigInvalid, cfg.Code)
	assert.Contains(t, cfg.Error(), "yaml: line 3")
}

func TestDispatchErrorCarriesSink(t *testing.T) {
	err := ToDomainError(NewDispatchError("webhook", errors.New("timeout")))
	assert.Equal(t, CodeDispatchFailed, err.Code)
	assert.Equal(t, "webhook", err.Details["sink"])
}
