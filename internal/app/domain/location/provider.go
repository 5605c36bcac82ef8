package location

import (
	"context"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

type clientPositionKey struct{}

// WithClientPosition stashes a device reading the client pushed with its
// request. The resolver's device step consumes it through
// ClientPositionProvider.
func WithClientPosition(ctx context.Context, coord models.Coordinate) context.Context {
	return context.WithValue(ctx, clientPositionKey{}, coord)
}

// ClientPositionProvider treats a coordinate supplied by the calling client
// as the device source. A request without one behaves like a device failure,
// which sends the resolver down the fallback chain.
type ClientPositionProvider struct{}

func (ClientPositionProvider) Current(ctx context.Context) (models.Coordinate, error) {
	coord, ok := ctx.Value(clientPositionKey{}).(models.Coordinate)
	if !ok {
		return models.Coordinate{}, models.ErrPositionUnavailable
	}
	return coord, nil
}
