package odm

import "sync/atomic"

// Observer receives construction and load events, typically to feed
// metrics. Implementations must be safe for concurrent use.
type Observer interface {
	DocumentConstructed(class string)
	ValidationFailed(class string, fields []string)
	WireValueDropped(class, field string)
}

type nopObserver struct{}

func (nopObserver) DocumentConstructed(string)        {}
func (nopObserver) ValidationFailed(string, []string) {}
func (nopObserver) WireValueDropped(string, string)   {}

type observerBox struct{ Observer }

var observer atomic.Pointer[observerBox]

// SetObserver installs o process-wide. A nil o disables reporting.
func SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	observer.Store(&observerBox{o})
}

func currentObserver() Observer {
	if b := observer.Load(); b != nil {
		return b.Observer
	}
	return nopObserver{}
}
