package notifications

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// Publisher delivers lifecycle messages to an external system
type Publisher interface {
	Publish(ctx context.Context, event *LifecycleEvent) error
	Close() error
}

type nopPublisher struct{}

// Nop returns a publisher that drops every message
func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, *LifecycleEvent) error { return nil }
func (nopPublisher) Close() error                                   { return nil }

// Fanout sends every message to all publishers and reports every failure
type Fanout struct {
	publishers []Publisher
}

func NewFanout(publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

func (f *Fanout) Publish(ctx context.Context, event *LifecycleEvent) error {
	var result *multierror.Error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (f *Fanout) Close() error {
	var result *multierror.Error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
