package journal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateShape_AcceptsObjectWithStringType(t *testing.T) {
	require.True(t, ValidateShape([]byte(`{"type":"summary","summary":"x"}`)))
}

func TestValidateShape_RejectsNonJSON(t *testing.T) {
	require.False(t, ValidateShape([]byte(`not json at all`)))
}

func TestValidateShape_RejectsMissingType(t *testing.T) {
	require.False(t, ValidateShape([]byte(`{"summary":"x"}`)))
}

func TestValidateShape_RejectsEmptyType(t *testing.T) {
	require.False(t, ValidateShape([]byte(`{"type":""}`)))
}

func TestValidateShape_RejectsNonObjectTop(t *testing.T) {
	require.False(t, ValidateShape([]byte(`["type","summary"]`)))
}
