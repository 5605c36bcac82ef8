package location

import (
	"context"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

const streamBuffer = 8

// StreamProvider adapts readings pushed from outside, such as positions a
// websocket client streams, into a watchable source for the resolver. One
// goroutine pushes, one watch consumes.
type StreamProvider struct {
	readings chan models.Coordinate
}

func NewStreamProvider() *StreamProvider {
	return &StreamProvider{readings: make(chan models.Coordinate, streamBuffer)}
}

// Push hands a reading to the stream. When the consumer lags behind the
// buffer, the oldest reading is dropped; only the freshest positions matter.
func (p *StreamProvider) Push(coord models.Coordinate) {
	for {
		select {
		case p.readings <- coord:
			return
		default:
		}
		select {
		case <-p.readings:
		default:
		}
	}
}

// Close ends the stream once buffered readings are drained. Push must not be
// called after Close.
func (p *StreamProvider) Close() {
	close(p.readings)
}

// Watch implements WatchProvider.
func (p *StreamProvider) Watch(ctx context.Context) (<-chan models.Coordinate, error) {
	out := make(chan models.Coordinate)
	go func() {
		defer close(out)
		for {
			select {
			case coord, ok := <-p.readings:
				if !ok {
					return
				}
				select {
				case out <- coord:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
