package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderDefaultsComponentToUnknown(t *testing.T) {
	err := New(NewStd("boom")).Build()
	assert.Equal(t, ComponentUnknown, err.Component)
}

func TestBuilderCategoryAndContext(t *testing.T) {
	err := New(NewStd("missing handle")).
		Component("audiocore").
		Category(CategoryResource).
		Context("handle", 42).
		Build()

	assert.Equal(t, "audiocore", err.Component)
	assert.Equal(t, CategoryResource, err.Category)
	assert.Equal(t, 42, err.GetContext()["handle"])
	assert.EqualError(t, err, "missing handle")
}

func TestIsCategory(t *testing.T) {
	err := New(NewStd("nope")).Category(CategoryNotFound).Build()
	assert.True(t, IsCategory(err, CategoryNotFound))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsCategory(err, CategoryState))
}

func TestUnwrap(t *testing.T) {
	base := NewStd("base")
	err := Wrap(base).Component("netserver").Build()
	assert.ErrorIs(t, err, base)
}
