// Package dns resolves the host name of the proxy's API endpoint, either
// through the operating system or by asking a specific DNS server.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/miekg/dns"
)

type Resolver interface {
	Resolve(ctx context.Context, host string) ([]net.IPAddr, error)
	String() string
}

// ErrNoRecords is returned when every query succeeded but none carried an address.
var ErrNoRecords = errors.New("no address records")

type exchangeFunc = func(ctx context.Context, msg *dns.Msg) (*dns.Msg, error)

type msgEnvelope struct {
	msg *dns.Msg
	err error
}

func newMsg(host string, qType uint16) *dns.Msg {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qType)

	return msg
}

func recordTypeIDToName(id uint16) string {
	switch id {
	case dns.TypeA:
		return "A"
	case dns.TypeAAAA:
		return "AAAA"
	}

	return strconv.FormatUint(uint64(id), 10)
}

func lookupType(
	ctx context.Context,
	host string,
	queryType uint16,
	exchange exchangeFunc,
) *msgEnvelope {
	resMsg, err := exchange(ctx, newMsg(host, queryType))
	if err != nil {
		queryName := recordTypeIDToName(queryType)
		err = fmt.Errorf("resolving %s, query type %s: %w", host, queryName, err)

		return &msgEnvelope{err: err}
	}

	if resMsg.Rcode != dns.RcodeSuccess {
		err = fmt.Errorf(
			"resolving %s, query type %s: %s",
			host,
			recordTypeIDToName(queryType),
			dns.RcodeToString[resMsg.Rcode],
		)

		return &msgEnvelope{err: err}
	}

	return &msgEnvelope{msg: resMsg}
}

func lookupAllTypes(
	ctx context.Context,
	host string,
	qTypes []uint16,
	exchange exchangeFunc,
) <-chan *msgEnvelope {
	var wg sync.WaitGroup
	resCh := make(chan *msgEnvelope)

	for _, qType := range qTypes {
		wg.Add(1)

		go func(qType uint16) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			case resCh <- lookupType(ctx, host, qType, exchange):
			}
		}(qType)
	}

	go func() {
		wg.Wait()
		close(resCh)
	}()

	return resCh
}

func parseMsg(msg *dns.Msg) []net.IPAddr {
	var addrs []net.IPAddr

	for _, record := range msg.Answer {
		switch ipRecord := record.(type) {
		case *dns.A:
			addrs = append(addrs, net.IPAddr{IP: ipRecord.A})
		case *dns.AAAA:
			addrs = append(addrs, net.IPAddr{IP: ipRecord.AAAA})
		}
	}

	return addrs
}

// processMessages collects the answers of all queries. Addresses win over
// errors: a failed AAAA query does not hide a successful A answer.
func processMessages(ctx context.Context, resCh <-chan *msgEnvelope) ([]net.IPAddr, error) {
	var errs []error
	var addrs []net.IPAddr

	for result := range resCh {
		if result.err != nil {
			errs = append(errs, result.err)
			continue
		}

		addrs = append(addrs, parseMsg(result.msg)...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(addrs) > 0 {
		return addrs, nil
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return nil, ErrNoRecords
}
