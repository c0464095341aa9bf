package dns

import (
	"context"
	"net"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

var _ Resolver = (*PlainResolver)(nil)

// DefaultQueryTypes asks for both IPv4 and IPv6 addresses.
var DefaultQueryTypes = []uint16{dns.TypeA, dns.TypeAAAA}

// PlainResolver sends unencrypted UDP queries to a single upstream server.
type PlainResolver struct {
	logger zerolog.Logger

	upstream string
	qTypes   []uint16

	client *dns.Client
}

func NewPlainResolver(
	logger zerolog.Logger,
	upstream *net.UDPAddr,
	qTypes []uint16,
) *PlainResolver {
	if len(qTypes) == 0 {
		qTypes = DefaultQueryTypes
	}

	return &PlainResolver{
		logger:   logger,
		upstream: upstream.String(),
		qTypes:   qTypes,
		client:   &dns.Client{Net: "udp"},
	}
}

func (pr *PlainResolver) String() string {
	return "plain(" + pr.upstream + ")"
}

func (pr *PlainResolver) Resolve(ctx context.Context, host string) ([]net.IPAddr, error) {
	resCh := lookupAllTypes(ctx, host, pr.qTypes, pr.exchange)
	addrs, err := processMessages(ctx, resCh)
	if err != nil {
		return nil, err
	}

	pr.logger.Debug().Ctx(ctx).
		Str("host", host).
		Int("count", len(addrs)).
		Msgf("resolved via %s", pr.upstream)

	return addrs, nil
}

func (pr *PlainResolver) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	resp, _, err := pr.client.ExchangeContext(ctx, msg, pr.upstream)
	return resp, err
}
