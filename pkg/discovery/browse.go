package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// Browse queries the network for robots for up to timeout and returns the
// ones that answered, one per ID.
func Browse(ctx context.Context, timeout time.Duration) ([]Robot, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		robots []Robot
		seen   = make(map[string]bool)
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			r, ok := robotFromEntry(entry)
			if !ok || seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			robots = append(robots, r)
		}
	}()

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := resolver.Browse(browseCtx, ServiceName, Domain, entries); err != nil {
		return nil, fmt.Errorf("discovery: browse failed: %w", err)
	}

	// zeroconf closes entries once the context ends
	<-browseCtx.Done()
	wg.Wait()
	return robots, nil
}

// robotFromEntry converts a resolved service entry
func robotFromEntry(entry *zeroconf.ServiceEntry) (Robot, bool) {
	if entry == nil || entry.Port == 0 {
		return Robot{}, false
	}

	r := Robot{
		Info: Info{Name: entry.Instance, Port: entry.Port},
		Host: entry.HostName,
	}
	parseTXT(&r.Info, entry.Text)
	if r.ID == "" {
		r.ID = entry.Instance
	}

	// Skip link-local addresses
	for _, ip := range entry.AddrIPv4 {
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLinkLocalUnicast() {
			r.IPs = append(r.IPs, ip4)
		}
	}
	for _, ip := range entry.AddrIPv6 {
		if ip.IsGlobalUnicast() {
			r.IPs = append(r.IPs, ip)
		}
	}
	return r, true
}
