package dns

import (
	"context"
	"net"

	"github.com/rs/zerolog"
)

var _ Resolver = (*SystemResolver)(nil)

// SystemResolver defers to the operating system configuration.
type SystemResolver struct {
	logger zerolog.Logger

	*net.Resolver
}

func NewSystemResolver(logger zerolog.Logger) *SystemResolver {
	return &SystemResolver{
		logger:   logger,
		Resolver: &net.Resolver{PreferGo: true},
	}
}

func (sr *SystemResolver) String() string {
	return "system"
}

func (sr *SystemResolver) Resolve(ctx context.Context, host string) ([]net.IPAddr, error) {
	addrs, err := sr.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	sr.logger.Debug().Ctx(ctx).
		Str("host", host).
		Int("count", len(addrs)).
		Msg("resolved via system")

	return addrs, nil
}
