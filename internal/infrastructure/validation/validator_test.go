package validation_test

import (
	"testing"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    string   `json:"id" validate:"required,uuid"`
	Kind  string   `json:"kind" validate:"oneof=video comment"`
	Limit int32    `json:"limit" validate:"gte=0,lte=100"`
	Body  string   `json:"body" validate:"max=5"`
	IDs   []string `json:"ids" validate:"max=2,dive,uuid"`
}

func TestStructPasses(t *testing.T) {
	err := validation.Struct(&sample{
		ID:    "3f1c1a7e-6d8f-4c55-9b0a-0d4c1d7f9e21",
		Kind:  "video",
		Limit: 10,
		Body:  "héllo",
	})
	require.NoError(t, err)
}

func TestStructCollectsFieldErrors(t *testing.T) {
	err := validation.Struct(&sample{
		ID:    "not-a-uuid",
		Kind:  "channel",
		Limit: 101,
		Body:  "too long",
		IDs:   []string{"a", "b", "c"},
	})
	require.Error(t, err)

	var fieldErrs validation.Errors
	require.ErrorAs(t, err, &fieldErrs)
	fields := fieldErrs.Fields()
	assert.Equal(t, "id must be a valid UUID", fields["id"])
	assert.Equal(t, "kind must be one of: video comment", fields["kind"])
	assert.Equal(t, "limit must be less than or equal to 100", fields["limit"])
	assert.Equal(t, "body must be at most 5 characters", fields["body"])
	assert.Equal(t, "ids must contain at most 2 items", fields["ids"])
}

func TestStructRequired(t *testing.T) {
	err := validation.Struct(&sample{Kind: "comment"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
}
