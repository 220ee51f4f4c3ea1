package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service a dartlink server advertises.
const ServiceType = "_dartlink._tcp"

// DiscoveredService represents a discovered dartlink server
type DiscoveredService struct {
	ServiceName string
	Address     string
	Port        int
	Transport   string // "tcp" or "websocket", from the TXT records
	Version     string
	TXTRecords  []string
}

// Endpoint returns the host:port to dial.
func (s *DiscoveredService) Endpoint() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

func serviceFromEntry(entry *mdns.ServiceEntry) (*DiscoveredService, error) {
	var address string
	if entry.AddrV4 != nil {
		address = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		address = entry.AddrV6.String()
	} else {
		return nil, fmt.Errorf("no valid address found for service")
	}

	service := &DiscoveredService{
		ServiceName: entry.Name,
		Address:     address,
		Port:        entry.Port,
		Transport:   "tcp",
		TXTRecords:  entry.InfoFields,
	}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "transport":
			service.Transport = value
		case "version":
			service.Version = value
		}
	}
	return service, nil
}

// Discover returns the first dartlink server found on the local network.
func Discover(ctx context.Context, timeout time.Duration) (*DiscoveredService, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)

	// Start discovery in background
	go func() {
		defer close(entriesCh)
		if err := mdns.Lookup(ServiceType, entriesCh); err != nil {
			slog.Debug("mDNS lookup failed", "error", err)
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case entry, ok := <-entriesCh:
			if !ok {
				return nil, fmt.Errorf("no %s service found", ServiceType)
			}
			if !strings.Contains(entry.Name, ServiceType) {
				continue
			}
			service, err := serviceFromEntry(entry)
			if err != nil {
				slog.Debug("Skipping mDNS entry", "name", entry.Name, "error", err)
				continue
			}
			slog.Info("Discovered dartlink server",
				"service_name", service.ServiceName,
				"address", service.Address,
				"port", service.Port,
				"transport", service.Transport,
			)
			return service, nil

		case <-timer.C:
			return nil, fmt.Errorf("mDNS discovery timeout for %s", ServiceType)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
