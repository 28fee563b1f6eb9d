package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/babui-rent/babui/internal/security/auth"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := run(newAPIClient(getAPIURL(), loadToken()), os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(api *apiClient, command string, args []string, out io.Writer) error {
	switch command {
	case "property":
		return handleProperty(api, args, out)
	case "nearby":
		return nearby(api, args, out)
	case "clusters":
		return clusters(api, args, out)
	case "geocode":
		return handleGeocode(api, args, out)
	case "token":
		return mintToken(args, out)
	case "help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func handleProperty(api *apiClient, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: babui property <list|get|add|delete>")
	}

	switch args[0] {
	case "list":
		return listProperties(api, args[1:], out)
	case "get":
		return getProperty(api, args[1:], out)
	case "add":
		return addProperty(api, args[1:], out)
	case "delete":
		return deleteProperty(api, args[1:], out)
	default:
		return fmt.Errorf("unknown property command: %s", args[0])
	}
}

func handleGeocode(api *apiClient, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: babui geocode <reverse|search>")
	}

	switch args[0] {
	case "reverse":
		return reverseGeocode(api, args[1:], out)
	case "search":
		return searchPlaces(api, args[1:], out)
	default:
		return fmt.Errorf("unknown geocode command: %s", args[0])
	}
}

func mintToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "user id to put in the token")
	role := fs.String("role", "landlord", "role claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	save := fs.Bool("save", false, "store the token for later commands")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	tm, err := auth.NewTokenManager(os.Getenv("JWT_SECRET"), os.Getenv("JWT_ISSUER"))
	if err != nil {
		return fmt.Errorf("JWT_SECRET must be set: %w", err)
	}
	token, err := tm.GenerateToken(*user, *role, *ttl)
	if err != nil {
		return err
	}

	if *save {
		if err := saveToken(token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
	}
	fmt.Fprintln(out, token)
	return nil
}

func getAPIURL() string {
	if url := os.Getenv("BABUI_API_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".babui", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	if token := os.Getenv("BABUI_TOKEN"); token != "" {
		return token
	}
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Babui CLI

Usage:
  babui <command> [options]

Commands:
  property   Listing operations (list, get, add, delete)
  nearby     Properties within a radius (-lat -lng -radius, or -area)
  clusters   Map marker buckets
  geocode    Address lookups (reverse, search)
  token      Mint a development JWT (needs JWT_SECRET)
  help       Show this help message

Environment Variables:
  BABUI_API_URL   API endpoint (default: http://localhost:8080)
  BABUI_TOKEN     Bearer token for mutations (default: ~/.babui/token)

Examples:
  babui property list -type apartment
  babui property add -title "Flat in Banani" -type apartment -price 40000 -lat 23.7937 -lng 90.4066
  babui nearby -area gulshan -radius 2 -sort
  babui geocode reverse -lat 23.7925 -lng 90.4078
  babui token -user landlord-1 -save
`)
}
