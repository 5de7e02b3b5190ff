package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "token":
		cmdToken(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("meta-ads-mcp version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`meta-ads-mcp - Meta Ads MCP Connector

Usage:
  meta-ads-mcp <command> [options]

Commands:
  serve      Start the MCP server with its OAuth endpoints
  token      Mint a development bearer token
  version    Show version
  help       Show this help

Configuration (environment, optionally via .env):
  PORT                 Listen port (default 8080)
  BASE_URL             External base URL (default http://localhost:PORT)
  JWT_SECRET           Token signing secret (required)
  DATABASE_URL         SQLite path for ad-account links (default: in-memory demo)
  DATA_SOURCE          mock or graph (default mock)
  DEFAULT_SUBJECT      Subject granted by the auto-approving OAuth flow
  FACEBOOK_APP_ID      Meta app id
  FACEBOOK_APP_SECRET  Meta app secret, enables appsecret_proof
  META_API_VERSION     Graph API version (default v18.0)
  GRAPH_TIMEOUT        Graph API call timeout in seconds (default 15)
  ZANE_LOG_LEVEL       DEBUG, INFO, WARN, ERROR (default INFO)
  ZANE_LOG_FORMAT      text or json (default text)

Run 'meta-ads-mcp <command> --help' for more information on a command.
`)
}
