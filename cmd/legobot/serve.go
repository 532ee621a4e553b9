package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/teslashibe/go-legobot/internal/log"
	"github.com/teslashibe/go-legobot/pkg/device"
	"github.com/teslashibe/go-legobot/pkg/discovery"
	"github.com/teslashibe/go-legobot/pkg/ev3dev"
	"github.com/teslashibe/go-legobot/pkg/hub"
	"github.com/teslashibe/go-legobot/pkg/robot"
	"github.com/teslashibe/go-legobot/pkg/web"
)

type ServeCommand struct {
	Port        string `short:"p" long:"port" description:"Port to listen on (default ROBOT_PORT or 8000)"`
	Profile     string `long:"profile" description:"Hardware profile (tracked, head); default ROBOT_PROFILE"`
	Polarity    int    `long:"polarity" choice:"-1" choice:"1" description:"Override the profile's motor polarity"`
	Sysfs       string `long:"sysfs" description:"ev3dev device class root (default EV3DEV_SYSFS or /sys/class)"`
	Mock        bool   `long:"mock" description:"Serve a simulated robot with every module installed"`
	NoAdvertise bool   `long:"no-advertise" description:"Do not announce the robot via mDNS"`
}

func (c *ServeCommand) Execute(args []string) error {
	logger := log.Component("serve")

	profileName := firstNonEmpty(c.Profile, cfg.Profile)
	profile, err := robot.ProfileByName(profileName)
	if err != nil {
		return err
	}
	profile = profile.WithPolarity(cfg.MotorPolarity).WithPolarity(c.Polarity)

	var backend device.Backend
	if c.Mock {
		mock := device.NewFullMock()
		mock.SetProximity(60)
		backend = mock
		logger.Warn("serving a simulated robot")
	} else {
		backend = ev3dev.New(firstNonEmpty(c.Sysfs, cfg.SysfsRoot), profile.Ports,
			ev3dev.WithLogger(log.Component("ev3dev")))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := hub.New("events", log.Component("hub"))
	timeout := cfg.ServerTimeout()
	svc, err := robot.NewService(backend,
		robot.WithProfile(profile),
		robot.WithLogger(log.Component("robot")),
		robot.WithWatchdog(cfg.WatchdogPeriod, cfg.WatchdogThreshold),
		robot.WithEventHandler(web.EventPublisher(events, timeout)),
	)
	if err != nil {
		return fmt.Errorf("failed to start robot: %w", err)
	}
	defer svc.Close()

	devices, _ := svc.Devices()
	logger.Info("robot ready", "profile", profile.Name, "devices", devices, "watchdog_timeout", svc.WatchdogTimeout())

	port := firstNonEmpty(c.Port, cfg.RobotPort)
	server := web.NewServer(svc, events, web.Config{
		Port:                        port,
		OAuthAuthorizationServerURL: cfg.OAuthAuthorizationServerURL,
	})

	if cfg.Advertise && !c.NoAdvertise {
		portNum, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", port, err)
		}
		adv, err := discovery.Advertise(discovery.Info{
			Profile: profile.Name,
			Devices: devices,
			Port:    portNum,
		}, log.Component("discovery"))
		if err != nil {
			// Discovery is a convenience; the robot still serves
			logger.Warn("mDNS advertisement failed", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	go func() {
		if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("motor watchdog stopped", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("robot server stopped")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
