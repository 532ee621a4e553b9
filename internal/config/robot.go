// Package config provides configuration helpers for legobot commands.
//
// Values come from the environment. A .env file in the working directory is
// loaded first when present, so a robot can be configured without exporting
// variables by hand.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default robot configuration.
const (
	DefaultRobotPort = "8000"
	DefaultProfile   = "tracked"
	DefaultSysfsRoot = "/sys/class"
	DefaultLogLevel  = "info"
)

// Config is the resolved configuration of a legobot process.
type Config struct {
	RobotIP   string
	RobotPort string

	// Robot side
	Profile       string
	MotorPolarity int // 0 keeps the profile default
	SysfsRoot     string
	Advertise     bool

	// Safety timing
	WatchdogPeriod    time.Duration
	WatchdogThreshold int
	ResendPeriod      time.Duration

	// OAuth pass-through
	OAuthAuthorizationServerURL string
	OAuthClientID               string
	OAuthClientSecret           string
	OAuthTokenURL               string

	LogLevel string
}

// Load reads .env (if any) and the environment into a Config.
func Load() (*Config, error) {
	// A missing .env is normal on the robot
	_ = godotenv.Load()

	cfg := &Config{
		RobotIP:                     os.Getenv("ROBOT_IP"),
		RobotPort:                   envOr("ROBOT_PORT", DefaultRobotPort),
		Profile:                     envOr("ROBOT_PROFILE", DefaultProfile),
		SysfsRoot:                   envOr("EV3DEV_SYSFS", DefaultSysfsRoot),
		OAuthAuthorizationServerURL: os.Getenv("OAUTH_AUTHORIZATION_SERVER_URL"),
		OAuthClientID:               os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret:           os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthTokenURL:               os.Getenv("OAUTH_TOKEN_URL"),
		LogLevel:                    envOr("LOG_LEVEL", DefaultLogLevel),
		WatchdogPeriod:              time.Second,
		WatchdogThreshold:           5,
		ResendPeriod:                2 * time.Second,
	}

	var err error
	if cfg.MotorPolarity, err = envInt("MOTOR_POLARITY", 0); err != nil {
		return nil, err
	}
	if cfg.MotorPolarity != 0 && cfg.MotorPolarity != 1 && cfg.MotorPolarity != -1 {
		return nil, fmt.Errorf("MOTOR_POLARITY must be 1 or -1, got %d", cfg.MotorPolarity)
	}
	if cfg.WatchdogThreshold, err = envInt("WATCHDOG_THRESHOLD", cfg.WatchdogThreshold); err != nil {
		return nil, err
	}
	if cfg.WatchdogPeriod, err = envDuration("WATCHDOG_PERIOD", cfg.WatchdogPeriod); err != nil {
		return nil, err
	}
	if cfg.ResendPeriod, err = envDuration("RESEND_PERIOD", cfg.ResendPeriod); err != nil {
		return nil, err
	}
	if cfg.Advertise, err = envBool("LEGOBOT_ADVERTISE", true); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ServerTimeout is how long the server watchdog tolerates silence.
func (c *Config) ServerTimeout() time.Duration {
	return c.WatchdogPeriod * time.Duration(c.WatchdogThreshold)
}

// RobotAddr returns host:port of the robot, or "" when no IP is configured.
func (c *Config) RobotAddr() string {
	if c.RobotIP == "" {
		return ""
	}
	return net.JoinHostPort(c.RobotIP, c.RobotPort)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
