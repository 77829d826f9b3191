package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowList_EmptyAllowsEveryone(t *testing.T) {
	a := NewAllowList(nil)
	assert.True(t, a.IsAllowed(1))
	assert.True(t, a.IsAllowed(999))
}

func TestAllowList_RestrictsToListedIDs(t *testing.T) {
	a := NewAllowList([]int64{42, 77})
	assert.True(t, a.IsAllowed(42))
	assert.True(t, a.IsAllowed(77))
	assert.False(t, a.IsAllowed(99))
}
