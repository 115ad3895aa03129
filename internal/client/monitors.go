package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/GriffinCanCode/monview/internal/shared/types"
	"github.com/bytedance/sonic"
)

// ListMonitors fetches GET /monitors and normalizes the result.
func (c *Client) ListMonitors(ctx context.Context) (types.MonitorList, error) {
	body, err := c.get(ctx, "list_monitors", registryBreaker, "/monitors", "")
	if err != nil {
		return nil, err
	}

	var monitors []types.MonitorDescriptor
	if err := sonic.Unmarshal(body, &monitors); err != nil {
		return nil, fmt.Errorf("failed to decode monitor list: %w", err)
	}
	return types.NormalizeMonitors(monitors, c.maxScreens), nil
}

// ScreenImage fetches GET /monitors/{address}/{screen}?r={token}.
func (c *Client) ScreenImage(ctx context.Context, address string, screen int, token string) ([]byte, error) {
	path := "/monitors/" + url.PathEscape(address) + "/" + strconv.Itoa(screen)
	return c.get(ctx, "screen_image", "screen:"+address+"/"+strconv.Itoa(screen), path, "r="+url.QueryEscape(token))
}

// LegacyImage fetches GET /monitors/{address}?{token}, the single-screen form.
func (c *Client) LegacyImage(ctx context.Context, address string, token string) ([]byte, error) {
	path := "/monitors/" + url.PathEscape(address)
	return c.get(ctx, "legacy_image", "legacy:"+address, path, url.QueryEscape(token))
}
