package control

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/xtls/xray-core/app/proxyman/command"
	"github.com/xvzc/xrayctl/internal/dns"
	"github.com/xvzc/xrayctl/internal/netutil"
	"github.com/xvzc/xrayctl/internal/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// TraceIDHeader is the metadata key the trace ID of each call is sent under.
const TraceIDHeader = "x-trace-id"

type options struct {
	timeout  time.Duration
	resolver dns.Resolver
	dialOpts []grpc.DialOption
}

type Option func(*options)

// WithTimeout bounds every call. Zero leaves only the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithResolver resolves the endpoint host with r and dials every returned
// address, keeping the first connection that succeeds.
func WithResolver(r dns.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithDialOptions appends raw gRPC dial options, applied last.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) {
		o.dialOpts = append(o.dialOpts, opts...)
	}
}

// Client sends user operations to one proxy API endpoint.
type Client struct {
	logger zerolog.Logger

	endpoint Endpoint
	timeout  time.Duration

	conn    *grpc.ClientConn
	handler command.HandlerServiceClient
}

// New prepares a connection to endpoint. The connection is established
// lazily, so an unreachable endpoint surfaces as a KindConnection error from
// the first operation rather than from New.
func New(logger zerolog.Logger, endpoint Endpoint, opts ...Option) (*Client, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	if o.resolver != nil {
		d := netutil.NewDialer(o.resolver, o.timeout)
		dialOpts = append(dialOpts, grpc.WithContextDialer(d.DialContext))
	}

	dialOpts = append(dialOpts, o.dialOpts...)

	conn, err := grpc.NewClient(endpoint.target(), dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", endpoint, err)
	}

	return &Client{
		logger:   logger,
		endpoint: endpoint,
		timeout:  o.timeout,
		conn:     conn,
		handler:  command.NewHandlerServiceClient(conn),
	}, nil
}

func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Close releases the connection handle.
func (c *Client) Close() error {
	return c.conn.Close()
}

// AddUser registers rec on the inbound named by rec.InTag. On failure the
// response is nil and the error is a *Error.
func (c *Client) AddUser(
	ctx context.Context,
	rec UserRecord,
) (*command.AlterInboundResponse, error) {
	const action = "add user"

	ctx = callContext(ctx, rec)

	if err := rec.ValidateAdd(); err != nil {
		return nil, c.report(ctx, action, rec, invalidRecord(err))
	}

	req, err := BuildAddUserRequest(rec)
	if err != nil {
		return nil, c.report(ctx, action, rec, invalidRecord(err))
	}

	return c.alterInbound(ctx, action, rec, req)
}

// RemoveUser drops the user registered under rec.Email from rec.InTag. Other
// fields of rec are ignored.
func (c *Client) RemoveUser(
	ctx context.Context,
	rec UserRecord,
) (*command.AlterInboundResponse, error) {
	const action = "remove user"

	ctx = callContext(ctx, rec)

	if err := rec.ValidateRemove(); err != nil {
		return nil, c.report(ctx, action, rec, invalidRecord(err))
	}

	req, err := BuildRemoveUserRequest(rec)
	if err != nil {
		return nil, c.report(ctx, action, rec, invalidRecord(err))
	}

	return c.alterInbound(ctx, action, rec, req)
}

func callContext(ctx context.Context, rec UserRecord) context.Context {
	return session.WithInbound(session.WithNewTraceID(ctx), rec.InTag)
}

func (c *Client) alterInbound(
	ctx context.Context,
	action string,
	rec UserRecord,
	req *command.AlterInboundRequest,
) (*command.AlterInboundResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if traceID, ok := session.TraceIDFrom(ctx); ok {
		ctx = metadata.AppendToOutgoingContext(ctx, TraceIDHeader, traceID)
	}

	c.logger.Debug().Ctx(ctx).
		Str("email", rec.Email).
		Str("endpoint", c.endpoint.String()).
		Msgf("sending %s request", action)

	resp, err := c.handler.AlterInbound(ctx, req)
	if err != nil {
		return nil, c.report(ctx, action, rec, Classify(err))
	}

	c.logger.Info().Ctx(ctx).
		Str("email", rec.Email).
		Msgf("%s done", action)

	return resp, nil
}

// report logs one diagnostic line for a failed call and returns e.
func (c *Client) report(ctx context.Context, action string, rec UserRecord, e *Error) error {
	event := c.logger.Error()
	if e.Kind == KindAlreadyExists {
		event = c.logger.Warn()
	}

	event.Ctx(ctx).
		Str("email", rec.Email).
		Str("kind", e.Kind.String()).
		Str("code", e.Code.String()).
		Msgf("%s failed: %s", action, e.Message)

	return e
}
