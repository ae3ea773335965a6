package hook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifyInvokesInRegistrationOrder(t *testing.T) {
	l := NewList[string]()
	var order []int

	l.Register(ListenerFunc[string](func(owner string, cause error) {
		order = append(order, 1)
	}))
	l.Register(ListenerFunc[string](func(owner string, cause error) {
		order = append(order, 2)
	}))

	l.Notify("victim", errors.New("boom"))
	assert.Equal(t, []int{1, 2}, order)
}

func TestNotifyWithNoListenersIsNoop(t *testing.T) {
	l := NewList[string]()
	assert.NotPanics(t, func() {
		l.Notify("victim", errors.New("boom"))
	})
}
