package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 41)
	assert.Equal(t, Pagination{Page: 1, PerPage: 20, Total: 41, TotalPages: 3}, p)
	assert.Equal(t, 0, p.Offset())
	assert.True(t, p.HasNext())

	p = NewPagination(3, 20, 41)
	assert.Equal(t, 40, p.Offset())
	assert.False(t, p.HasNext())

	assert.Equal(t, 0, NewPagination(1, 10, 0).TotalPages)
}

func TestNormalizePage(t *testing.T) {
	page, per := NormalizePage(-1, 0, 10, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, per)

	_, per = NormalizePage(2, 500, 10, 100)
	assert.Equal(t, 100, per)
}

func TestWarmupLockKeyIsNamespaced(t *testing.T) {
	assert.Equal(t, "bizbilling:metrics:warmup:lock", MetricsWarmupLockKey)
}
