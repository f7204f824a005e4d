package collision

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// ErrPublisherFull is returned by a channel publisher whose channel has no room.
var ErrPublisherFull = errors.New("collision status channel is full, dropping decision")

// Publisher emits collision decisions downstream.
type Publisher interface {
	Publish(ctx context.Context, collision bool) error
}

// PublisherFunc adapts a function into a Publisher.
type PublisherFunc func(ctx context.Context, collision bool) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, collision bool) error {
	return f(ctx, collision)
}

type channelPublisher struct {
	ch chan<- bool
}

// NewChannelPublisher returns a Publisher that sends decisions on ch without blocking. A decision
// that does not fit is dropped and reported as ErrPublisherFull.
func NewChannelPublisher(ch chan<- bool) Publisher {
	return &channelPublisher{ch: ch}
}

func (p *channelPublisher) Publish(ctx context.Context, collision bool) error {
	select {
	case p.ch <- collision:
		return nil
	default:
		return ErrPublisherFull
	}
}

// Status is the wire form of one decision.
type Status struct {
	Collision bool `json:"collision"`
}

type jsonLinesPublisher struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesPublisher returns a Publisher that writes each decision to w as a line of JSON.
func NewJSONLinesPublisher(w io.Writer) Publisher {
	return &jsonLinesPublisher{enc: json.NewEncoder(w)}
}

func (p *jsonLinesPublisher) Publish(ctx context.Context, collision bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Wrap(p.enc.Encode(Status{Collision: collision}), "failed to write collision status")
}
