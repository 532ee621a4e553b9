package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-legobot/pkg/client"
	"github.com/teslashibe/go-legobot/pkg/device"
	"github.com/teslashibe/go-legobot/pkg/robot"
)

type TeleopCommand struct {
	RobotOptions

	Speed int `short:"s" long:"speed" default:"50" description:"Initial drive speed in percent"`
}

const (
	speedStep = 10
	maxLogs   = 4
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

type teleopModel struct {
	robot    *client.Client
	speed    int
	intent   robot.MotorStatus
	sensors  string
	logs     []string
	quitting bool
}

type sensorsMsg string

type resultMsg struct {
	action string
	err    error
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m teleopModel) drive(left, right int) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{
			action: fmt.Sprintf("drive %d %d", left, right),
			err:    m.robot.SetMotors(left, right),
		}
	}
}

func (m teleopModel) lights(color device.LEDColor) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{
			action: "lights " + string(color),
			err:    m.robot.SetLights(color, color),
		}
	}
}

// pollSensors reads whatever sensors the robot has once a second
func pollSensors(c *client.Client) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		var parts []string
		if c.Supports(robot.MethodGetDistance) {
			if d, err := c.GetDistance(); err == nil {
				parts = append(parts, fmt.Sprintf("distance %d cm", d))
			}
		}
		if c.Supports(robot.MethodGetColor) {
			if col, err := c.GetColor(); err == nil {
				parts = append(parts, "color "+col)
			}
		}
		if c.Supports(robot.MethodGetButton) {
			if p, err := c.GetButton(); err == nil {
				parts = append(parts, fmt.Sprintf("button %t", p))
			}
		}
		return sensorsMsg(strings.Join(parts, "  "))
	})
}

func (m teleopModel) Init() tea.Cmd {
	return pollSensors(m.robot)
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		s := m.speed
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Sequence(m.drive(0, 0), tea.Quit)
		case "up", "w":
			return m, m.drive(s, s)
		case "down", "s":
			return m, m.drive(-s, -s)
		case "left", "a":
			return m, m.drive(-s, s)
		case "right", "d":
			return m, m.drive(s, -s)
		case " ":
			return m, m.drive(0, 0)
		case "+", "=":
			m.speed = min(m.speed+speedStep, robot.MaxSpeed)
		case "-":
			m.speed = max(m.speed-speedStep, speedStep)
		case "g":
			return m, m.lights(device.Green)
		case "r":
			return m, m.lights(device.Red)
		case "o":
			return m, m.lights(device.Black)
		}
		return m, nil

	case resultMsg:
		if msg.err != nil {
			m.addLog(errorStyle.Render(msg.action + ": " + msg.err.Error()))
		}
		m.intent = m.robot.Intent()
		return m, nil

	case sensorsMsg:
		m.sensors = string(msg)
		return m, pollSensors(m.robot)
	}
	return m, nil
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleop stopped.\n"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("legobot teleop"))
	sb.WriteString(statusStyle.Render("  " + m.robot.Addr()))
	sb.WriteString("\n\n")

	motors := fmt.Sprintf("left %4d  right %4d", m.intent.Left, m.intent.Right)
	if m.intent.Left != 0 || m.intent.Right != 0 {
		motors = activeStyle.Render(motors)
	}
	body := []string{
		"speed  " + fmt.Sprintf("%d%%", m.speed),
		"motors " + motors,
		"caps   " + m.robot.Capabilities().String(),
	}
	if m.sensors != "" {
		body = append(body, "sensor "+m.sensors)
	}
	sb.WriteString(boxStyle.Render(strings.Join(body, "\n")))
	sb.WriteString("\n")

	if len(m.logs) > 0 {
		sb.WriteString(strings.Join(m.logs, "\n"))
		sb.WriteString("\n")
	}
	sb.WriteString(statusStyle.Render("arrows/wasd drive  space stop  +/- speed  g/r/o lights  q quit"))
	sb.WriteString("\n")
	return sb.String()
}

func (c *TeleopCommand) Execute(args []string) error {
	if c.Speed <= 0 || c.Speed > robot.MaxSpeed {
		return fmt.Errorf("speed must be in 1..%d", robot.MaxSpeed)
	}

	robotClient, cleanup, err := c.connect(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	if !robotClient.Supports(robot.MethodSetMotors) {
		return fmt.Errorf("robot at %s has no drive motors", robotClient.Addr())
	}

	model := teleopModel{robot: robotClient, speed: c.Speed, intent: robotClient.Intent()}
	p := tea.NewProgram(model)
	_, err = p.Run()
	return err
}
