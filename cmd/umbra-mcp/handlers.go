package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/services/graph"
)

// handleSearchPages implements the search_pages tool
func handleSearchPages(pages interfaces.PageStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return textResult("Error: query parameter is required"), nil
		}

		limit := request.GetInt("limit", 10)
		if limit > 100 {
			limit = 100
		}

		results, err := pages.SearchPages(query, limit)
		if err != nil {
			logger.Error().Err(err).Msg("Page search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		return textResult(formatSearchResults(query, results)), nil
	}
}

// handleGetPage implements the get_page tool
func handleGetPage(pages interfaces.PageStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil || url == "" {
			return textResult("Error: url parameter is required"), nil
		}

		page, err := pages.GetPage(url)
		if err != nil {
			logger.Error().Err(err).Str("url", url).Msg("GetPage failed")
			return textResult(fmt.Sprintf("Page not found: %v", err)), nil
		}

		return textResult(formatPage(page)), nil
	}
}

// handleGetStats implements the get_stats tool
func handleGetStats(pages interfaces.PageStorage, entityGraph *graph.Graph, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := pages.GetStats()
		if err != nil {
			logger.Error().Err(err).Msg("GetStats failed")
			return textResult(fmt.Sprintf("Stats error: %v", err)), nil
		}

		return textResult(formatStats(stats, entityGraph.Stats())), nil
	}
}

// handleListAlerts implements the list_alerts tool
func handleListAlerts(alerts interfaces.AlertStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		severity := request.GetString("severity", "")
		unreadOnly := request.GetBool("unread_only", false)
		limit := request.GetInt("limit", 20)

		list, err := alerts.ListAlerts(severity, unreadOnly, limit)
		if err != nil {
			logger.Error().Err(err).Msg("ListAlerts failed")
			return textResult(fmt.Sprintf("Alert error: %v", err)), nil
		}

		return textResult(formatAlerts(severity, unreadOnly, list)), nil
	}
}

// handleCrossDomainEntities implements the cross_domain_entities tool
func handleCrossDomainEntities(entityGraph *graph.Graph, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		minDomains := request.GetInt("min_domains", 2)
		if minDomains < 2 {
			minDomains = 2
		}

		hits := entityGraph.CrossDomain(minDomains)
		return textResult(formatCrossDomain(minDomains, hits)), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
