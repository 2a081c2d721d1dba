package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/larkmail/lark/consts"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create-account":
		handleCreateAccount()
	case "list-mailboxes":
		handleListMailboxes()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`LARK Admin Tool

Usage:
  lark-admin <command> [options]

Commands:
  create-account   Create a new account with its default mailboxes
  list-mailboxes   List the mailboxes of an account
  help             Show this help message

Examples:
  lark-admin create-account --address user@example.com
  lark-admin create-account --config /path/to/config.toml --address user@example.com
  lark-admin list-mailboxes --address user@example.com

Use 'lark-admin <command> --help' for more information about a command.
`)
}

func handleCreateAccount() {
	fs, opts := newAdminFlags("create-account")
	address := fs.String("address", "", "Email address for the new account (required)")
	fs.Parse(os.Args[2:])

	if *address == "" {
		fmt.Println("Error: --address is required")
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	database := connect(ctx, opts)
	defer database.Close()

	accountID, err := database.CreateAccount(ctx, *address)
	if err != nil {
		if errors.Is(err, consts.ErrDBUniqueViolation) {
			fmt.Printf("Error: account '%s' already exists\n", *address)
			os.Exit(1)
		}
		fmt.Printf("Error: failed to create account: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Account '%s' created with id %s\n", *address, accountID)
}

func handleListMailboxes() {
	fs, opts := newAdminFlags("list-mailboxes")
	address := fs.String("address", "", "Email address of the account (required)")
	fs.Parse(os.Args[2:])

	if *address == "" {
		fmt.Println("Error: --address is required")
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	database := connect(ctx, opts)
	defer database.Close()

	accountID, err := database.ResolveAccount(ctx, *address)
	if err != nil {
		if errors.Is(err, consts.ErrAccountNotFound) {
			fmt.Printf("Error: account '%s' not found\n", *address)
			os.Exit(1)
		}
		fmt.Printf("Error: failed to resolve account: %v\n", err)
		os.Exit(1)
	}

	mailboxes, err := database.ListMailboxes(ctx, accountID)
	if err != nil {
		fmt.Printf("Error: failed to list mailboxes: %v\n", err)
		os.Exit(1)
	}
	for _, m := range mailboxes {
		role := "-"
		if m.Role != nil {
			role = string(*m.Role)
		}
		fmt.Printf("%s\t%s\t%s\n", m.ID, m.Name, role)
	}
}
