package robot

import (
	"sort"

	"github.com/teslashibe/go-legobot/pkg/device"
)

// Wire names of the robot operations.
const (
	MethodDevices            = "get_device_list"
	MethodInit               = "init"
	MethodSetLights          = "set_lights"
	MethodSetMotors          = "set_motors"
	MethodGetMotors          = "get_motors"
	MethodSetHead            = "set_head"
	MethodSpeak              = "speak"
	MethodGetButton          = "get_button"
	MethodWaitButtonPressed  = "wait_button_pressed"
	MethodWaitButtonReleased = "wait_button_released"
	MethodGetColor           = "get_color"
	MethodGetDistance        = "get_distance"
)

// Argument limits.
const (
	MaxSpeed        = 100
	MaxHeadPosition = 100
)

// Param describes one named argument of an operation.
type Param struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // JSON schema type
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *int     `json:"minimum,omitempty"`
	Maximum     *int     `json:"maximum,omitempty"`
}

// MethodDescriptor is the static description of one operation: its wire name,
// the modules it needs and its arguments. Requires is empty for operations
// that are always available.
type MethodDescriptor struct {
	Name        string        `json:"name"`
	Requires    []device.Kind `json:"requires,omitempty"`
	Description string        `json:"description"`
	Params      []Param       `json:"params,omitempty"`
}

func intRange(lo, hi int) (*int, *int) { return &lo, &hi }

func speedParam(name, side string) Param {
	lo, hi := intRange(-MaxSpeed, MaxSpeed)
	return Param{
		Name:        name,
		Type:        "integer",
		Description: "Speed of the " + side + " motor in percent; negative drives backwards",
		Minimum:     lo,
		Maximum:     hi,
	}
}

func colorParam(name, side string) Param {
	colors := make([]string, 0, len(device.LEDColors()))
	for _, c := range device.LEDColors() {
		colors = append(colors, string(c))
	}
	return Param{
		Name:        name,
		Type:        "string",
		Description: "Color of the " + side + " light",
		Enum:        colors,
	}
}

var methods = func() []MethodDescriptor {
	headLo, headHi := intRange(-MaxHeadPosition, MaxHeadPosition)
	return []MethodDescriptor{
		{
			Name:        MethodDevices,
			Description: "List the modules installed on the robot",
		},
		{
			Name:        MethodInit,
			Description: "Re-detect the installed modules, stop the motors and turn the lights off",
		},
		{
			Name:        MethodSetLights,
			Requires:    []device.Kind{device.Lights},
			Description: "Set the colors of the left and right lights",
			Params:      []Param{colorParam("left_color", "left"), colorParam("right_color", "right")},
		},
		{
			Name:        MethodSetMotors,
			Requires:    []device.Kind{device.Motors},
			Description: "Drive the motors; the robot stops on its own if the command is not renewed",
			Params:      []Param{speedParam("left_speed", "left"), speedParam("right_speed", "right")},
		},
		{
			Name:        MethodGetMotors,
			Requires:    []device.Kind{device.Motors},
			Description: "Report the active motor command and safety timer state",
		},
		{
			Name:        MethodSetHead,
			Requires:    []device.Kind{device.Head},
			Description: "Turn the head; 0 is straight ahead",
			Params: []Param{{
				Name:        "position",
				Type:        "integer",
				Description: "Head position from full left (-100) to full right (100)",
				Minimum:     headLo,
				Maximum:     headHi,
			}},
		},
		{
			Name:        MethodSpeak,
			Requires:    []device.Kind{device.Speaker},
			Description: "Say a short line of text",
			Params: []Param{{
				Name:        "text",
				Type:        "string",
				Description: "Text to say; only the first 200 characters are spoken",
			}},
		},
		{
			Name:        MethodGetButton,
			Requires:    []device.Kind{device.Button},
			Description: "Report whether the button is pressed",
		},
		{
			Name:        MethodWaitButtonPressed,
			Requires:    []device.Kind{device.Button},
			Description: "Wait up to two seconds for the button to be pressed",
		},
		{
			Name:        MethodWaitButtonReleased,
			Requires:    []device.Kind{device.Button},
			Description: "Wait up to two seconds for the button to be released",
		},
		{
			Name:        MethodGetColor,
			Requires:    []device.Kind{device.Color},
			Description: "Read the color under the color sensor",
		},
		{
			Name:        MethodGetDistance,
			Requires:    []device.Kind{device.Distance},
			Description: "Read the distance to the nearest obstacle in centimetres",
		},
	}
}()

// Methods returns every operation in a stable order.
func Methods() []MethodDescriptor {
	out := make([]MethodDescriptor, len(methods))
	copy(out, methods)
	return out
}

// LookupMethod finds an operation by wire name.
func LookupMethod(name string) (MethodDescriptor, bool) {
	for _, m := range methods {
		if m.Name == name {
			return m, true
		}
	}
	return MethodDescriptor{}, false
}

// Callable reports whether every module the operation needs is in caps.
func (d MethodDescriptor) Callable(caps device.CapabilitySet) bool {
	return caps.Contains(d.Requires...)
}

// AvailableMethods returns the sorted wire names of the operations caps allows.
func AvailableMethods(caps device.CapabilitySet) []string {
	var names []string
	for _, m := range methods {
		if m.Callable(caps) {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Schema renders the arguments as a JSON schema object.
func (d MethodDescriptor) Schema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		props[p.Name] = prop
		required = append(required, p.Name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
