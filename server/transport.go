package server

import (
	"github.com/mbocsi/dartlink/transport"
)

// Transport accepts connections and hands each one to the server as a
// transport.Conn. The connection handler runs on its own goroutine and
// blocks for the lifetime of the connection.
type Transport interface {
	Listen() error
	Serve() error
	OnConnect(func(transport.Conn))
	Shutdown() error
	Addr() string
	Meta() TransportMetadata
	SetName(name string)
	SetDescription(description string)
}

type TransportMetadata struct {
	Name        string `json:"name"`        // Human-friendly name, e.g. "TCP Server"
	Protocol    string `json:"protocol"`    // "tcp" or "websocket"
	Address     string `json:"address"`     // Bound address once listening, else the configured one
	Description string `json:"description"` // Optional, short purpose/use case

	Clients    int  `json:"clients"`     // Current open connections
	MaxClients int  `json:"max_clients"` // Connections beyond this are refused
	Connected  bool `json:"connected"`   // Whether the transport is currently bound
}
