package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// oauthMetadataPath is the RFC 8414 discovery document path
const oauthMetadataPath = "/.well-known/oauth-authorization-server"

// handleOAuthMetadata passes the authorization server's metadata through so
// clients can discover it from the robot's origin.
func (s *Server) handleOAuthMetadata(c *fiber.Ctx) error {
	if s.cfg.OAuthAuthorizationServerURL == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "OAuth authorization server URL not configured",
		})
	}

	body, err := s.fetchOAuthMetadata(c)
	if err != nil {
		s.logger.Warn("oauth metadata fetch failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch OAuth configuration: " + err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

func (s *Server) fetchOAuthMetadata(c *fiber.Ctx) ([]byte, error) {
	url := strings.TrimRight(s.cfg.OAuthAuthorizationServerURL, "/") + oauthMetadataPath
	req, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errors.New("upstream returned invalid JSON")
	}
	return body, nil
}
