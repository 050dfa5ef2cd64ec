package docs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceConfig{IDProvider: NewUUIDProvider()})
	requireCode(t, err, "docs.service.new.missing_database")

	db := openTestDatabase(t)
	_, err = NewService(ServiceConfig{Database: db})
	requireCode(t, err, "docs.service.new.missing_id_provider")
}

func TestZeroValueServiceFailsCleanly(t *testing.T) {
	var service Service
	_, err := service.GetDocument(context.Background(), "doc-1")
	requireCode(t, err, "docs.get_document.missing_database")
	assert.Equal(t, KindInternal, Kind(err))
}

func TestKindClassifiesWrappedErrors(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: newServiceError("op", "bad", fmt.Errorf("%w: title", ErrValidation)), want: KindValidation},
		{err: newServiceError("op", "gone", ErrNotFound), want: KindNotFound},
		{err: ErrUnauthorized, want: KindUnauthorized},
		{err: fmt.Errorf("wrap: %w", ErrForbidden), want: KindForbidden},
		{err: ErrInvalidState, want: KindInvalidState},
		{err: ErrAlreadyResolved, want: KindAlreadyResolved},
		{err: ErrConflict, want: KindConflict},
		{err: errors.New("disk on fire"), want: KindInternal},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.want, Kind(testCase.err), "error %v", testCase.err)
	}
}

func TestServiceErrorFormatsCode(t *testing.T) {
	err := newServiceError("docs.promote", "query_failed", errors.New("boom"))
	assert.Equal(t, "docs.promote.query_failed: boom", err.Error())

	bare := newServiceError("docs.promote", "query_failed", nil)
	assert.Equal(t, "docs.promote.query_failed", bare.Error())
}

func TestFailuresAreLoggedByKind(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := newHarness(t, func(cfg *ServiceConfig) { cfg.Logger = zap.New(core) })
	view := h.createDocument(t, "user-1", "A")

	err := h.service.Delete(context.Background(), DocumentID(view.Document.ID), "user-2")
	require.ErrorIs(t, err, ErrForbidden)

	rejected := logs.FilterMessage("docs request rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.InfoLevel, rejected[0].Level)
	assert.Equal(t, "not_owner", rejected[0].ContextMap()["reason"])
	assert.Empty(t, logs.FilterMessage("docs service error").All())
}

func TestOperationsAreObserved(t *testing.T) {
	h := newHarness(t)
	view := h.createDocument(t, "user-1", "A")
	_, err := h.service.GetSuggestion(context.Background(), "missing")
	require.Error(t, err)
	_, err = h.service.GetDocument(context.Background(), DocumentID(view.Document.ID))
	require.NoError(t, err)

	assert.Equal(t, []operationSample{
		{operation: opCreateDocument, outcome: "ok"},
		{operation: opGetSuggestion, outcome: KindNotFound},
		{operation: opGetDocument, outcome: "ok"},
	}, h.metrics.operations)
}
