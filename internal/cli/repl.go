package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for the prompt and REPL messages.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	Add(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
	Usage(ctx context.Context) error
	Theme(ctx context.Context, name string) error
	CleanupThumbs(ctx context.Context) error
}

const helpText = "Available commands: add, (l)ist, show <id>, delete <id>, rename <id>, " +
	"reorder <id>..., usage, theme <light|dark|auto>, thumbs-cleanup, exit"

// runREPL reads commands from scanner until EOF, "exit" or "quit". Command
// errors are reported by the handlers themselves and never end the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("sb %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "add":
			_ = a.Add(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "show", "delete", "rename", "theme":
			if len(args) != 1 {
				printlnFn(fmt.Sprintf("Usage: %s <%s>", cmd, argName(cmd)))
				continue
			}
			switch cmd {
			case "show":
				_ = a.Show(ctx, args[0])
			case "delete":
				_ = a.Delete(ctx, args[0])
			case "rename":
				_ = a.Rename(ctx, args[0])
			case "theme":
				_ = a.Theme(ctx, args[0])
			}

		case "reorder":
			if len(args) == 0 {
				printlnFn("Usage: reorder <id> [id...]")
				continue
			}
			_ = a.Reorder(ctx, args)

		case "usage":
			_ = a.Usage(ctx)

		case "thumbs", "thumbs-cleanup":
			_ = a.CleanupThumbs(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func argName(cmd string) string {
	if cmd == "theme" {
		return "light|dark|auto"
	}
	return "id"
}
