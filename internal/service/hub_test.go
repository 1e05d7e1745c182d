package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub(t *testing.T) {
	h := NewHub()

	a, cancelA := h.Watch("alice")
	b, cancelB := h.Watch("bob")
	defer cancelB()

	h.Notify("alice")
	h.Notify("alice")

	select {
	case <-a:
	default:
		t.Fatal("expected alice's watcher to be woken")
	}
	select {
	case <-a:
		t.Fatal("notifications must coalesce")
	default:
	}
	select {
	case <-b:
		t.Fatal("bob must not be woken by alice's writes")
	default:
	}

	assert.Equal(t, 1, h.Watchers("alice"))
	cancelA()
	cancelA()
	assert.Equal(t, 0, h.Watchers("alice"))
}
