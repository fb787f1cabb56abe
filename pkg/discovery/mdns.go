package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// ServiceType is the mDNS service type coordinators register under.
const ServiceType = "_mrd._tcp"

// Domain is the mDNS domain used for both advertising and browsing.
const Domain = "local"

// jobIDKey is the TXT record key carrying the job identifier, so a
// browsing worker can confirm it found the right coordinator when more
// than one is advertising on the same network.
const jobIDKey = "job"

// Advertiser registers a coordinator's address over mDNS until Stop is
// called.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers a "_mrd._tcp" service for a coordinator listening
// on port, tagging it with jobID as a TXT record.
func Advertise(port int, jobID string) (*Advertiser, error) {
	instance := fmt.Sprintf("mrd-coordinator-%d", port)
	txt := []string{jobIDKey + "=" + jobID}

	server, err := zeroconf.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register: %w", err)
	}
	return &Advertiser{server: server}, nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	if a.server != nil {
		a.server.Shutdown()
	}
}

// Coordinator is one discovered coordinator's dialable address.
type Coordinator struct {
	Address string // host:port, ready for transport.Dial
	JobID   string
}

// Find browses for a coordinator advertising jobID (or any coordinator,
// if jobID is empty) and returns the first one seen before ctx expires.
func Find(ctx context.Context, jobID string) (*Coordinator, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultBrowseTimeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry, 8)
	removed := make(chan *zeroconf.ServiceEntry, 8)

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, fmt.Errorf("discovery: no coordinator found for job %q", jobID)
			}
			c := entryToCoordinator(entry)
			if c == nil {
				continue
			}
			if jobID != "" && c.JobID != jobID {
				continue
			}
			return c, nil

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func entryToCoordinator(entry *zeroconf.ServiceEntry) *Coordinator {
	var addr net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		addr = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		addr = entry.AddrIPv6[0]
	default:
		return nil
	}

	jobID := ""
	for _, kv := range entry.Text {
		if len(kv) > len(jobIDKey)+1 && kv[:len(jobIDKey)+1] == jobIDKey+"=" {
			jobID = kv[len(jobIDKey)+1:]
		}
	}

	return &Coordinator{
		Address: net.JoinHostPort(addr.String(), strconv.Itoa(entry.Port)),
		JobID:   jobID,
	}
}

// defaultBrowseTimeout bounds a Find call made without an explicit
// deadline already on ctx.
const defaultBrowseTimeout = 10 * time.Second
