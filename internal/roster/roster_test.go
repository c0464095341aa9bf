package roster

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtls/xray-core/app/proxyman/command"
	"github.com/xtls/xray-core/common/protocol"
	"github.com/xvzc/xrayctl/internal/control"
	"github.com/xvzc/xrayctl/internal/xraytest"
)

func records(n int) []control.UserRecord {
	recs := make([]control.UserRecord, n)
	for i := range recs {
		recs[i] = control.UserRecord{
			UUID:  "099d680f-1e2d-4ef3-9973-64044ff8009b",
			InTag: "vless_tls",
			Email: fmt.Sprintf("user%d@xray.com", i),
			Flow:  "xtls-rprx-vision",
		}
	}

	return recs
}

func TestApply_AgainstServer(t *testing.T) {
	srv := xraytest.Start(t)
	srv.Seed("vless_tls", &protocol.User{Email: "user1@xray.com"})

	c, err := control.New(
		zerolog.Nop(),
		control.Endpoint{Host: "xray.test", Port: 8080},
		control.WithTimeout(5*time.Second),
		control.WithDialOptions(srv.DialOption()),
	)
	require.NoError(t, err)
	defer c.Close()

	recs := records(5)

	outcomes := Apply(context.Background(), zerolog.Nop(), c, OpAdd, recs, 3)
	require.Len(t, outcomes, 5)
	for i, o := range outcomes {
		assert.Equal(t, recs[i], o.Record)
	}

	assert.Equal(t, StatusUnchanged, outcomes[1].Status())
	assert.Equal(t, Summary{Applied: 4, Unchanged: 1}, Summarize(outcomes))
	assert.Len(t, srv.Emails("vless_tls"), 5)

	outcomes = Apply(context.Background(), zerolog.Nop(), c, OpRemove, recs[:2], 3)
	s := Summarize(outcomes)
	assert.True(t, s.OK())
	assert.Equal(t, 2, s.Applied)
	assert.Len(t, srv.Emails("vless_tls"), 3)
}

type countingController struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	removed  []string
}

func (c *countingController) AddUser(
	ctx context.Context,
	rec control.UserRecord,
) (*command.AlterInboundResponse, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	time.Sleep(10 * time.Millisecond)

	if rec.Email == "user0@xray.com" {
		return nil, &control.Error{Kind: control.KindConnection, Message: "down"}
	}

	return &command.AlterInboundResponse{}, nil
}

func (c *countingController) RemoveUser(
	ctx context.Context,
	rec control.UserRecord,
) (*command.AlterInboundResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removed = append(c.removed, rec.Email)
	return &command.AlterInboundResponse{}, nil
}

func TestApply_Limits(t *testing.T) {
	ctl := &countingController{}

	outcomes := Apply(context.Background(), zerolog.Nop(), ctl, OpAdd, records(8), 2)

	assert.LessOrEqual(t, ctl.peak.Load(), int32(2))
	assert.Equal(t, Summary{Applied: 7, Failed: 1}, Summarize(outcomes))
	assert.Equal(t, StatusFailed, outcomes[0].Status())
	assert.False(t, Summarize(outcomes).OK())
}

func TestApply_ZeroWorkers(t *testing.T) {
	ctl := &countingController{}

	outcomes := Apply(context.Background(), zerolog.Nop(), ctl, OpRemove, records(3), 0)
	assert.Len(t, outcomes, 3)
	assert.Len(t, ctl.removed, 3)
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		name   string
		op     Operation
		recs   func() []control.UserRecord
		assert func(t *testing.T, err error)
	}{
		{
			name: "valid",
			op:   OpAdd,
			recs: func() []control.UserRecord { return records(3) },
			assert: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "duplicate email on one inbound",
			op:   OpAdd,
			recs: func() []control.UserRecord {
				recs := records(2)
				recs[1].Email = recs[0].Email
				return recs
			},
			assert: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "already declared")
			},
		},
		{
			name: "same email on two inbounds",
			op:   OpAdd,
			recs: func() []control.UserRecord {
				recs := records(2)
				recs[1].Email = recs[0].Email
				recs[1].InTag = "vless_reality"
				return recs
			},
			assert: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "missing uuid only matters for add",
			op:   OpRemove,
			recs: func() []control.UserRecord {
				recs := records(1)
				recs[0].UUID = ""
				return recs
			},
			assert: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "invalid record is indexed",
			op:   OpAdd,
			recs: func() []control.UserRecord {
				recs := records(2)
				recs[1].UUID = ""
				return recs
			},
			assert: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "user [1]")
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tc.assert(t, Validate(tc.op, tc.recs()))
		})
	}
}
