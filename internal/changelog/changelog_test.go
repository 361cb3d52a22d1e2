package changelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldChange(t *testing.T) {
	oldValue, newValue := "Backend", "Platform"
	e := FieldChange("title", &oldValue, &newValue)

	assert.Equal(t, "title", e.Field)
	assert.Equal(t, "Campo atualizado: title", e.Description)
	assert.Equal(t, &oldValue, e.OldValue)
	assert.Equal(t, &newValue, e.NewValue)
}

func TestFieldChange_cleared(t *testing.T) {
	oldValue := "2026-01-01"
	e := FieldChange("expires_at", &oldValue, nil)

	assert.Nil(t, e.NewValue)
}
