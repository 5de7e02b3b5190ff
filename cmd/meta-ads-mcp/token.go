package main

import (
	"fmt"
	"os"

	"github.com/zanehq/meta-ads-mcp/internal/config"
	"github.com/zanehq/meta-ads-mcp/internal/token"
)

// cmdToken mints a bearer token signed with the configured secret, for
// driving the server with curl during development.
func cmdToken(args []string) {
	subject := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--subject", "-s":
			if i+1 < len(args) {
				subject = args[i+1]
				i++
			}
		case "--help", "-h":
			printTokenUsage()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if subject == "" {
		subject = cfg.DefaultSubject
	}

	tokens := token.NewService([]byte(cfg.JWTSecret))
	bearer, err := tokens.IssueAccessToken(subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error issuing token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(bearer)
}

func printTokenUsage() {
	fmt.Print(`meta-ads-mcp token - Mint a development bearer token

Usage:
  meta-ads-mcp token [options]

Options:
  --subject, -s SUBJECT   Token subject (default: DEFAULT_SUBJECT)
  --help, -h              Show this help

Examples:
  JWT_SECRET=dev-secret meta-ads-mcp token
  curl -H "Authorization: Bearer $(meta-ads-mcp token)" \
       -d '{"jsonrpc":"2.0","id":1,"method":"tools/list"}' http://localhost:8080/
`)
}
