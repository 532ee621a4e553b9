package robot

import (
	"fmt"
	"sort"

	"github.com/teslashibe/go-legobot/pkg/device"
)

// Profile describes one robot build: where each module is plugged in and how
// the drivetrain is wired. Motor polarity differs between builds and is not
// visible to callers: a positive speed always means forwards.
type Profile struct {
	Name string

	// MotorPolarity is multiplied into every drive speed (1 or -1).
	MotorPolarity int

	Ports device.Ports

	// HeadSpeed is the head motor speed in percent.
	HeadSpeed int

	// HeadDegreesPerStep converts a head position (-100..100) to motor degrees.
	HeadDegreesPerStep float64
}

// Built-in profiles.
var (
	// Tracked is the caterpillar build: tracks on A/D, button, color sensor
	// and infrared sensor, no head.
	Tracked = Profile{
		Name:          "tracked",
		MotorPolarity: -1,
		Ports: device.Ports{
			LeftMotor:  "outA",
			RightMotor: "outD",
			Touch:      "in1",
			Color:      "in3",
			Proximity:  "in4",
		},
		HeadSpeed:          20,
		HeadDegreesPerStep: 1,
	}

	// HeadBot is the build with a rotating head on A, drive motors on C/B
	// and an infrared sensor.
	HeadBot = Profile{
		Name:          "head",
		MotorPolarity: -1,
		Ports: device.Ports{
			LeftMotor:  "outC",
			RightMotor: "outB",
			Head:       "outA",
			Proximity:  "in4",
		},
		HeadSpeed:          20,
		HeadDegreesPerStep: 1,
	}
)

var profiles = map[string]Profile{
	Tracked.Name: Tracked,
	HeadBot.Name: HeadBot,
}

// ProfileByName returns a built-in profile.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown robot profile %q (known: %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames lists the built-in profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WithPolarity returns a copy of p with the drive polarity overridden.
// Zero keeps the profile's own polarity.
func (p Profile) WithPolarity(polarity int) Profile {
	if polarity != 0 {
		p.MotorPolarity = polarity
	}
	return p
}

func (p Profile) polarity() int {
	if p.MotorPolarity < 0 {
		return -1
	}
	return 1
}
