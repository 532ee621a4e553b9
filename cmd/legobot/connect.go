package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/bridge"
	"github.com/teslashibe/go-legobot/pkg/client"
	"github.com/teslashibe/go-legobot/pkg/device"
	"github.com/teslashibe/go-legobot/pkg/discovery"
	"github.com/teslashibe/go-legobot/pkg/robot"
)

// RobotOptions selects the robot a client command talks to.
type RobotOptions struct {
	Robot     string `short:"r" long:"robot" description:"Robot address (host, host:port or URL); defaults to ROBOT_IP or mDNS discovery"`
	Transport string `long:"transport" choice:"http" choice:"ws" default:"http" description:"Call transport"`
	Init      bool   `long:"init" description:"Re-initialize the robot's hardware before connecting"`
	Mock      bool   `long:"mock" description:"Drive an in-process simulated robot instead"`
}

// connect opens a client for the selected robot. The returned cleanup
// closes everything connect started.
func (o *RobotOptions) connect(ctx context.Context) (*client.Client, func(), error) {
	clientOpts := []client.Option{
		client.WithTransport(client.Transport(o.Transport)),
		client.WithResendPeriod(cfg.ResendPeriod),
		client.WithServerTimeout(cfg.ServerTimeout()),
	}
	if o.Init {
		clientOpts = append(clientOpts, client.WithReinitialize())
	}

	cleanup := func() {}
	addr := o.Robot
	if o.Mock {
		caller, stop, err := mockRobot(ctx)
		if err != nil {
			return nil, nil, err
		}
		cleanup = stop
		addr = "mock"
		clientOpts = append(clientOpts, client.WithCaller(caller))
	} else {
		if addr == "" {
			addr = cfg.RobotAddr()
		}
		if addr == "" {
			found, err := discoverOne(ctx)
			if err != nil {
				return nil, nil, err
			}
			addr = found
		}
		if ts := tokenSource(ctx); ts != nil {
			clientOpts = append(clientOpts, client.WithTokenSource(ts))
		}
	}

	c, err := client.Connect(ctx, addr, clientOpts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return c, func() {
		c.Close()
		cleanup()
	}, nil
}

// tokenSource builds OAuth client credentials when configured
func tokenSource(ctx context.Context) oauth2.TokenSource {
	if cfg.OAuthClientID == "" || cfg.OAuthClientSecret == "" || cfg.OAuthTokenURL == "" {
		return nil
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		TokenURL:     cfg.OAuthTokenURL,
	}
	return cc.TokenSource(ctx)
}

func discoverOne(ctx context.Context) (string, error) {
	log.Info("no robot address given, browsing the local network")
	robots, err := discovery.Browse(ctx, 3*time.Second)
	if err != nil {
		return "", err
	}
	switch len(robots) {
	case 0:
		return "", errors.New("no robot found; pass --robot or set ROBOT_IP")
	case 1:
		log.Info("found robot", "name", robots[0].Name, "addr", robots[0].Address())
		return robots[0].Address(), nil
	default:
		return "", fmt.Errorf("%d robots found; pick one with --robot (see 'legobot discover')", len(robots))
	}
}

// mockRobot runs a simulated robot in process, with its watchdog ticking in
// real time
func mockRobot(ctx context.Context) (bridge.Caller, func(), error) {
	mock := device.NewFullMock()
	mock.SetProximity(60)

	svc, err := robot.NewService(mock,
		robot.WithLogger(log.Component("mock-robot")),
		robot.WithWatchdog(cfg.WatchdogPeriod, cfg.WatchdogThreshold),
	)
	if err != nil {
		return nil, nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	go svc.Run(runCtx)

	caller := bridge.NewLocalCaller(bridge.NewDispatcher(svc, log.Component("mock-robot")))
	return caller, func() {
		cancel()
		svc.Close()
	}, nil
}
