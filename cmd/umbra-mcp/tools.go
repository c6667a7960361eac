package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchPagesTool returns the search_pages tool definition
func createSearchPagesTool() mcp.Tool {
	return mcp.NewTool("search_pages",
		mcp.WithDescription("Search crawled hidden-service pages by URL, title or page text"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Substring matched against url, title and content"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 10, max: 100)"),
		),
	)
}

// createGetPageTool returns the get_page tool definition
func createGetPageTool() mcp.Tool {
	return mcp.NewTool("get_page",
		mcp.WithDescription("Retrieve one crawled page with its extracted intelligence by exact URL"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Canonical page URL (e.g. http://example.onion/login)"),
		),
	)
}

// createGetStatsTool returns the get_stats tool definition
func createGetStatsTool() mcp.Tool {
	return mcp.NewTool("get_stats",
		mcp.WithDescription("Summarize the crawl store and the entity graph: page counts, domains, risk, extracted indicators"),
	)
}

// createListAlertsTool returns the list_alerts tool definition
func createListAlertsTool() mcp.Tool {
	return mcp.NewTool("list_alerts",
		mcp.WithDescription("List raised intelligence alerts, newest first"),
		mcp.WithString("severity",
			mcp.Description("Filter by severity: critical, high, medium, low, info"),
		),
		mcp.WithBoolean("unread_only",
			mcp.Description("Only alerts not yet acknowledged"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}

// createCrossDomainEntitiesTool returns the cross_domain_entities tool definition
func createCrossDomainEntitiesTool() mcp.Tool {
	return mcp.NewTool("cross_domain_entities",
		mcp.WithDescription("Find entities sighted on multiple hidden-service domains; recurring wallets, emails and keys are how separate sites get tied together"),
		mcp.WithNumber("min_domains",
			mcp.Description("Minimum distinct domains an entity must appear on (default: 2)"),
		),
	)
}
