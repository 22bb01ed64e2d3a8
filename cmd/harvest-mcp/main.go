package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/harvest/models"
)

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("HARVEST_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("HARVEST_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "HARVEST_API_KEY is required")
		os.Exit(1)
	}

	if err := server.ServeStdio(newServer(newAPIClient(apiURL, apiKey))); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"harvest",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	harvestTool := mcp.NewTool("harvest_listing",
		mcp.WithDescription("Open every product on a marketplace search-results page in a real browser and return title, URL and attribute table for each. Runs as a background job; by default waits for it to finish."),
		mcp.WithString("search_url",
			mcp.Required(),
			mcp.Description("The search-results page to harvest"),
		),
		mcp.WithNumber("max_entries",
			mcp.Description("Process at most this many entries (1-1000, default: all)"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the job to finish and return its records (default: true). When false, returns the job ID for get_harvest."),
		),
	)
	s.AddTool(harvestTool, handleHarvestListing(c))

	getTool := mcp.NewTool("get_harvest",
		mcp.WithDescription("Get the status and records of a harvest job started with harvest_listing."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The harvest job ID"),
		),
	)
	s.AddTool(getTool, handleGetHarvest(c))

	return s
}

func handleHarvestListing(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		searchURL, err := request.RequireString("search_url")
		if err != nil {
			return mcp.NewToolResultError("search_url is required"), nil
		}

		id, err := c.submit(ctx, models.HarvestRequest{
			SearchURL:  searchURL,
			MaxEntries: request.GetInt("max_entries", 0),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("harvest request failed: %v", err)), nil
		}

		if !request.GetBool("wait", true) {
			return mcp.NewToolResultText(fmt.Sprintf("Harvest %s queued. Use get_harvest to follow it.", id)), nil
		}

		st, err := c.wait(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling harvest %s failed: %v", id, err)), nil
		}
		return mcp.NewToolResultText(formatStatus(st)), nil
	}
}

func handleGetHarvest(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		st, err := c.status(ctx, id, true)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get harvest failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatStatus(st)), nil
	}
}
