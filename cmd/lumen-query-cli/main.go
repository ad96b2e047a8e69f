package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/lumen-wm/lumen-queryd/client/query"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <command> [args...]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  query <text>    - Set the query text\n")
		fmt.Fprintf(os.Stderr, "  list            - List visible entries for the current query\n")
		fmt.Fprintf(os.Stderr, "  activate        - Activate the top match (or run the command line)\n")
		fmt.Fprintf(os.Stderr, "  select <id>     - Launch an entry by id\n")
		fmt.Fprintf(os.Stderr, "  rescan [dirs]   - Rebuild the entry set\n")
		fmt.Fprintf(os.Stderr, "  interactive     - Interactive mode\n")
		os.Exit(1)
	}

	// Create client
	client, err := query.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	cmd := os.Args[1]

	if cmd == "interactive" {
		runInteractive(client)
		return
	}

	switch cmd {
	case "query":
		text := ""
		if len(os.Args) > 2 {
			text = strings.Join(os.Args[2:], " ")
		}
		mode, err := client.Query(text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("mode: %s\n", mode)
	case "list":
		rows, err := client.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		for _, row := range rows {
			fmt.Printf("%s\t%d\t%s\n", row.ID, row.Score, row.Name)
		}
	case "activate":
		if err := client.Activate(); err != nil {
			fmt.Fprintf(os.Stderr, "Activate failed: %v\n", err)
			os.Exit(1)
		}
	case "select":
		if len(os.Args) < 3 {
			fmt.Fprintf(os.Stderr, "Usage: %s select <id>\n", os.Args[0])
			os.Exit(1)
		}
		if err := client.Select(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Select failed: %v\n", err)
			os.Exit(1)
		}
	case "rescan":
		indexed, err := client.Rescan(os.Args[2:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Rescan failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("indexed: %d\n", indexed)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		os.Exit(1)
	}
}

func runInteractive(client *query.Client) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Interactive mode. Type a query, :list, :activate, :select <id> or :exit.")
	fmt.Print("> ")

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == ":exit" || trimmed == ":quit":
			return
		case trimmed == ":list":
			rows, err := client.List()
			if err != nil {
				fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
				break
			}
			for _, row := range rows {
				fmt.Printf("%s\t%d\t%s\n", row.ID, row.Score, row.Name)
			}
		case trimmed == ":activate":
			if err := client.Activate(); err != nil {
				fmt.Fprintf(os.Stderr, "Activate failed: %v\n", err)
			}
		case strings.HasPrefix(trimmed, ":select "):
			id := strings.TrimSpace(strings.TrimPrefix(trimmed, ":select "))
			if err := client.Select(id); err != nil {
				fmt.Fprintf(os.Stderr, "Select failed: %v\n", err)
			}
		default:
			// Anything else is query text, including command-prefix lines
			mode, err := client.Query(line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
				break
			}
			fmt.Printf("mode: %s\n", mode)
		}

		fmt.Print("> ")
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}
