package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesTypeAndCause(t *testing.T) {
	err := CatalogUnavailable("get products", io.ErrUnexpectedEOF)

	assert.Equal(t, "[CATALOG_UNAVAILABLE] get products: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, err.HasType(TypeCatalogUnavailable))
}

func TestIsTypeFollowsWrapChain(t *testing.T) {
	inner := InvalidTimeRange("end before start")
	wrapped := fmt.Errorf("computing: %w", inner)

	assert.True(t, IsType(wrapped, TypeInvalidTimeRange))
	assert.False(t, IsType(wrapped, TypeFormat))
	assert.Equal(t, TypeInvalidTimeRange, TypeOf(wrapped))
	assert.Equal(t, Type(""), TypeOf(io.EOF))
}

func TestMissingBillingFieldCarriesField(t *testing.T) {
	err := MissingBillingField("BillableDurationMinutes")

	require.NotNil(t, err.Context)
	assert.Equal(t, "BillableDurationMinutes", err.Context["field"])
	assert.Contains(t, err.Error(), "BillableDurationMinutes")
}
