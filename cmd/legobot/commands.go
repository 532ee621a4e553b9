package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/teslashibe/go-legobot/pkg/discovery"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type DevicesCommand struct {
	RobotOptions
}

func (c *DevicesCommand) Execute(args []string) error {
	ctx := context.Background()
	robot, cleanup, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	devices, _ := robot.Devices()
	fmt.Println(headerStyle.Render("Devices") + dimStyle.Render(robot.Addr()))
	for _, d := range devices {
		fmt.Println("  " + d)
	}
	fmt.Println(headerStyle.Render("Methods"))
	for _, m := range robot.Methods() {
		fmt.Println("  " + m)
	}
	return nil
}

type CallCommand struct {
	RobotOptions

	// Hold keeps the connection open so a motor command stays alive
	Hold time.Duration `long:"hold" description:"Keep the client running this long after the call (for set_motors)"`

	Args struct {
		Method string `positional-arg-name:"method" required:"yes"`
		Params string `positional-arg-name:"params" description:"JSON object of parameters"`
	} `positional-args:"yes"`
}

func (c *CallCommand) Execute(args []string) error {
	var params map[string]any
	if p := strings.TrimSpace(c.Args.Params); p != "" {
		if err := json.Unmarshal([]byte(p), &params); err != nil {
			return fmt.Errorf("params must be a JSON object: %w", err)
		}
	}

	ctx := context.Background()
	robot, cleanup, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var result any
	if err := robot.Call(ctx, c.Args.Method, params, &result); err != nil {
		return err
	}
	if err := printJSON(result); err != nil {
		return err
	}

	if c.Hold > 0 {
		time.Sleep(c.Hold)
	}
	return nil
}

type ToolsCommand struct {
	RobotOptions
}

func (c *ToolsCommand) Execute(args []string) error {
	ctx := context.Background()
	robot, cleanup, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return printJSON(robot.Tools())
}

type DiscoverCommand struct {
	Timeout time.Duration `short:"t" long:"timeout" default:"3s" description:"How long to listen for announcements"`
}

func (c *DiscoverCommand) Execute(args []string) error {
	robots, err := discovery.Browse(context.Background(), c.Timeout)
	if err != nil {
		return err
	}
	if len(robots) == 0 {
		fmt.Println(dimStyle.Render("No robots found."))
		return nil
	}

	rows := make([][]string, 0, len(robots))
	for _, r := range robots {
		rows = append(rows, []string{
			r.Name,
			r.Address(),
			r.Profile,
			strings.Join(r.Devices, ", "),
			r.ID,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Name", "Address", "Profile", "Devices", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Println(t.Render())
	fmt.Println(dimStyle.Render(strconv.Itoa(len(robots)) + " robot(s)"))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
