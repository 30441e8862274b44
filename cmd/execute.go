package cmd

import (
	"fmt"
	"os"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the chatrelay server.
// It handles flag parsing and command routing.
//
// Design: following the pattern used by kubectl, hugo, and other
// standard Go CLI tools, all application logic is contained in
// the cmd package, leaving main.go as a minimal entry point.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "serve":
			return runServe()
		case "migrate":
			return runMigrate()
		default:
			printHelp()
			return fmt.Errorf("unknown command: %s", os.Args[1])
		}
	}

	// Serving is the default behavior
	return runServe()
}

// printVersionInfo displays version information.
func printVersionInfo() error {
	fmt.Printf("chatrelay v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

// printHelp displays usage information.
func printHelp() {
	fmt.Println("chatrelay - streaming chat relay backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  chatrelay [serve]           Start the HTTP API server (default)")
	fmt.Println("  chatrelay serve --addr :8001")
	fmt.Println("  chatrelay migrate           Apply database migrations and exit")
	fmt.Println("  chatrelay version           Show version information")
	fmt.Println("  chatrelay help              Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  GEMINI_API_KEY              Gemini API key (required)")
	fmt.Println("  DATABASE_URL                postgres:// URL (postgres backend)")
	fmt.Println("  CHATRELAY_*                 Configuration overrides")
}

// checkRequiredEnv verifies that required environment variables are set.
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "chatrelay requires a Gemini API key to function.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")

		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}
