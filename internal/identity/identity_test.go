package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatic(t *testing.T) {
	user, ok := Static(" alice ").CurrentActor()
	assert.True(t, ok)
	assert.Equal(t, "alice", user)

	_, ok = Static("").CurrentActor()
	assert.False(t, ok)

	_, ok = Static("   ").CurrentActor()
	assert.False(t, ok)
}

func TestFunc(t *testing.T) {
	signedIn := false
	p := Func(func() (string, bool) { return "bob", signedIn })

	_, ok := p.CurrentActor()
	assert.False(t, ok)

	signedIn = true
	user, ok := p.CurrentActor()
	assert.True(t, ok)
	assert.Equal(t, "bob", user)
}
