package notification

import "context"

type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent)
}

// Fanout hands every event to each publisher in order. Publishers must not block.
type Fanout struct {
	publishers []Publisher
}

func NewFanout(publishers ...Publisher) *Fanout {
	out := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Fanout{publishers: out}
}

func (f *Fanout) Publish(ctx context.Context, ev BookingEvent) {
	for _, p := range f.publishers {
		p.Publish(ctx, ev)
	}
}

type Nop struct{}

func (Nop) Publish(context.Context, BookingEvent) {}
