package client

import "github.com/teslashibe/go-legobot/pkg/robot"

// Tool describes one callable operation for an agent's tool catalogue.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Tools lists only the operations this robot supports, so an agent is never
// offered something the hardware cannot do.
func (c *Client) Tools() []Tool {
	var tools []Tool
	for _, m := range robot.Methods() {
		if !c.Supports(m.Name) {
			continue
		}
		tools = append(tools, Tool{
			Name:        m.Name,
			Description: m.Description,
			Parameters:  m.Schema(),
		})
	}
	return tools
}
