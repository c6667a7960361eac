package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/umbra/internal/common"
	"github.com/ternarybob/umbra/internal/services/graph"
	"github.com/ternarybob/umbra/internal/storage"
)

func main() {
	configPath := os.Getenv("UMBRA_CONFIG")
	if configPath == "" {
		configPath = "umbra.toml"
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Console only at warn level; stdout belongs to the MCP transport
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	// The graph only lives in memory; rebuild from stored entity matches
	// so correlation tools see the same view as the dashboard.
	entityGraph := graph.New(logger)
	if pages, err := storageManager.Pages().AllPages(); err != nil {
		logger.Warn().Err(err).Msg("Failed to load pages for graph rebuild")
	} else {
		entityGraph.RebuildFromPages(pages)
	}

	mcpServer := server.NewMCPServer(
		"umbra",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createSearchPagesTool(), handleSearchPages(storageManager.Pages(), logger))
	mcpServer.AddTool(createGetPageTool(), handleGetPage(storageManager.Pages(), logger))
	mcpServer.AddTool(createGetStatsTool(), handleGetStats(storageManager.Pages(), entityGraph, logger))
	mcpServer.AddTool(createListAlertsTool(), handleListAlerts(storageManager.Alerts(), logger))
	mcpServer.AddTool(createCrossDomainEntitiesTool(), handleCrossDomainEntities(entityGraph, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
