package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(500))
	assert.Equal(t, 25, NormalizeLimit(25))
}

func TestOffsetAndMeta(t *testing.T) {
	p := Params{Page: 3, Limit: 20}
	assert.Equal(t, 40, p.Offset())

	meta := p.Meta(41)
	assert.Equal(t, 3, meta.CurrentPage)
	assert.Equal(t, 20, meta.PerPage)
	assert.Equal(t, 3, meta.TotalPages)
	assert.EqualValues(t, 41, meta.TotalRecords)

	assert.Equal(t, 0, Params{}.Offset())
	assert.Equal(t, 0, Params{}.Meta(0).TotalPages)
}
