// Package xraytest runs an in-process HandlerService that behaves like the
// proxy's user management: a per-inbound user table keyed by email.
package xraytest

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"testing"

	"github.com/xtls/xray-core/app/proxyman/command"
	"github.com/xtls/xray-core/common/protocol"
	"github.com/xvzc/xrayctl/internal/envelope"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

// TraceIDHeader mirrors the metadata key clients send trace IDs under.
const TraceIDHeader = "x-trace-id"

// Server is an in-memory HandlerService keeping users per inbound tag.
type Server struct {
	command.UnimplementedHandlerServiceServer

	mu       sync.Mutex
	users    map[string]map[string]*protocol.User
	requests []*command.AlterInboundRequest
	traceIDs []string
	failWith error

	srv *grpc.Server
	buf *bufconn.Listener
}

func newServer() *Server {
	s := &Server{
		users: make(map[string]map[string]*protocol.User),
		srv:   grpc.NewServer(),
	}
	command.RegisterHandlerServiceServer(s.srv, s)

	return s
}

// Start serves over an in-memory listener. Clients reach it through
// DialOption.
func Start(t testing.TB) *Server {
	t.Helper()

	s := newServer()
	s.buf = bufconn.Listen(bufSize)

	go func() { _ = s.srv.Serve(s.buf) }()
	t.Cleanup(s.srv.Stop)

	return s
}

// StartTCP serves on a loopback TCP port and returns that port.
func StartTCP(t testing.TB) (*Server, uint16) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	s := newServer()

	go func() { _ = s.srv.Serve(ln) }()
	t.Cleanup(s.srv.Stop)

	return s, uint16(ln.Addr().(*net.TCPAddr).Port)
}

// DialOption routes a client to the in-memory listener of a Server made by Start.
func (s *Server) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return s.buf.DialContext(ctx)
	})
}

// FailWith makes every following call fail with err. Nil restores normal
// behavior.
func (s *Server) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failWith = err
}

// Seed registers a user without going through the API.
func (s *Server) Seed(tag string, u *protocol.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inbound(tag)[u.GetEmail()] = u
}

func (s *Server) Requests() []*command.AlterInboundRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*command.AlterInboundRequest(nil), s.requests...)
}

func (s *Server) TraceIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.traceIDs...)
}

// Emails lists the users of an inbound, sorted.
func (s *Server) Emails(tag string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	emails := make([]string, 0, len(s.users[tag]))
	for email := range s.users[tag] {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	return emails
}

func (s *Server) User(tag, email string) (*protocol.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[tag][email]
	return u, ok
}

func (s *Server) inbound(tag string) map[string]*protocol.User {
	m, ok := s.users[tag]
	if !ok {
		m = make(map[string]*protocol.User)
		s.users[tag] = m
	}

	return m
}

func (s *Server) AlterInbound(
	ctx context.Context,
	req *command.AlterInboundRequest,
) (*command.AlterInboundResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		s.traceIDs = append(s.traceIDs, md.Get(TraceIDHeader)...)
	}

	if s.failWith != nil {
		return nil, s.failWith
	}

	msg, err := envelope.Open(req.GetOperation())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	// The proxy answers with plain errors, which gRPC reports as Unknown.
	switch op := msg.(type) {
	case *command.AddUserOperation:
		users := s.inbound(req.GetTag())
		email := op.GetUser().GetEmail()
		if _, exists := users[email]; exists {
			return nil, fmt.Errorf("User %s already exists.", email)
		}
		users[email] = op.GetUser()
	case *command.RemoveUserOperation:
		users := s.inbound(req.GetTag())
		if _, exists := users[op.GetEmail()]; !exists {
			return nil, fmt.Errorf("User %s not found.", op.GetEmail())
		}
		delete(users, op.GetEmail())
	default:
		return nil, status.Errorf(codes.Unimplemented, "unsupported operation %T", msg)
	}

	return &command.AlterInboundResponse{}, nil
}
