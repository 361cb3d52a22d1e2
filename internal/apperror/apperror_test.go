package apperror

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("job %s not found", "x")))
	assert.Equal(t, KindValidation, KindOf(Validation("bad")))
	assert.Equal(t, KindConflict, KindOf(Conflict("taken")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestKindOf_wrapped(t *testing.T) {
	err := errors.Wrap(Conflict("slug taken"), "create job")
	assert.True(t, IsConflict(err))
	assert.Equal(t, "slug taken", Message(err))
}

func TestStorage_hidesDetail(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connection refused")
	err := Storage(cause, "begin transaction")

	assert.True(t, IsStorage(err))
	assert.Equal(t, "internal server error", Message(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil, "op"))

	notFound := NotFound("missing")
	assert.Same(t, notFound, From(notFound, "op"))

	assert.True(t, IsStorage(From(errors.New("boom"), "op")))
}
