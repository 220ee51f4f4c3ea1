package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service clients browse for.
const ServiceType = "_dartlink._tcp"

// Advertiser announces a transport's port on the local network.
type Advertiser struct {
	instance  string
	version   string
	transport Transport

	mu     sync.Mutex
	server *mdns.Server
}

func NewAdvertiser(t Transport, version string) *Advertiser {
	host, _ := os.Hostname()
	if host == "" {
		host = "dartlink"
	}
	return &Advertiser{instance: host, version: version, transport: t}
}

// TXT returns the records published with the service.
func (a *Advertiser) TXT() []string {
	return []string{"version=" + a.version, "transport=" + a.transport.Meta().Protocol}
}

func (a *Advertiser) Start(ctx context.Context) error {
	if err := a.transport.Listen(); err != nil {
		return err
	}
	_, portStr, err := net.SplitHostPort(a.transport.Addr())
	if err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("advertise: bad port %q: %w", portStr, err)
	}

	service, err := mdns.NewMDNSService(a.instance, ServiceType, "", "", port, nil, a.TXT())
	if err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	a.mu.Lock()
	a.server = server
	a.mu.Unlock()
	slog.Info("Advertising over mDNS", "service", ServiceType, "instance", a.instance, "port", port)

	<-ctx.Done()
	return nil
}

func (a *Advertiser) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	return err
}
