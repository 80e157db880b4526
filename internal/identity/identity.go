// Package identity answers who is acting.
package identity

import "strings"

// Provider returns the authenticated actor's identifier, or false when
// nobody is signed in
type Provider interface {
	CurrentActor() (string, bool)
}

// Static is a Provider with a fixed actor. An empty or blank value means
// nobody is signed in.
type Static string

func (s Static) CurrentActor() (string, bool) {
	user := strings.TrimSpace(string(s))
	return user, user != ""
}

// Func adapts a function to the Provider interface
type Func func() (string, bool)

func (f Func) CurrentActor() (string, bool) {
	return f()
}
