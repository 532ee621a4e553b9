package discovery

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"

	"github.com/teslashibe/go-legobot/internal/log"
)

// Advertiser announces one robot until stopped.
type Advertiser struct {
	info   Info
	server *zeroconf.Server
	logger *slog.Logger
}

// Advertise starts announcing info. An empty ID gets a random one and an
// empty Name defaults to the hostname.
func Advertise(info Info, logger *slog.Logger) (*Advertiser, error) {
	if logger == nil {
		logger = log.Component("discovery")
	}
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.Name == "" {
		info.Name = hostname()
	}
	if info.Port <= 0 {
		return nil, fmt.Errorf("discovery: invalid port %d", info.Port)
	}

	server, err := zeroconf.Register(info.Name, ServiceName, Domain, info.Port, txtRecords(info), nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: failed to register %s: %w", ServiceName, err)
	}

	logger.Info("advertising robot", "name", info.Name, "id", info.ID, "port", info.Port)
	return &Advertiser{info: info, server: server, logger: logger}, nil
}

// Info returns what is being advertised.
func (a *Advertiser) Info() Info {
	return a.info
}

// Stop withdraws the announcement.
func (a *Advertiser) Stop() {
	a.server.Shutdown()
	a.logger.Debug("stopped advertising", "name", a.info.Name)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "legobot"
	}
	return name
}
