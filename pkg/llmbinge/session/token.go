package session

import "sync"

// loadToken marks one in-flight load. A cancelled token's result must not
// be applied to the session list.
type loadToken struct {
	once sync.Once
	done chan struct{}
}

func newLoadToken() *loadToken {
	return &loadToken{done: make(chan struct{})}
}

func (t *loadToken) cancel() {
	t.once.Do(func() { close(t.done) })
}

func (t *loadToken) cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
