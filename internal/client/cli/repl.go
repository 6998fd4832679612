package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

var errUsage = errors.New("usage")

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
	Upload(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Share(ctx context.Context, args []string) error
	Revoke(ctx context.Context, args []string) error
	Links(ctx context.Context) error
	Ingest(ctx context.Context, args []string) error
	Quota(ctx context.Context) error
	Plans(ctx context.Context) error
	Buy(ctx context.Context, args []string) error
	Payments(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: register [user], login [user], plans, exit"
	helpLoggedIn  = "Available commands: upload <path>, (l)ist [search] [sort], delete <id>, " +
		"share <id> [duration] [code], revoke <token>, links, ingest <url>, quota, plans, buy <plan>, payments, logout, exit"
)

// runREPL reads commands line by line and dispatches them to a. The loop
// ends on EOF or "exit"/"quit". Command errors are printed and the loop
// continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("lv> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}

		if err := dispatch(ctx, a, cmd, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn(helpLoggedIn)
		} else {
			printlnFn(helpLoggedOut)
		}
		return nil
	case "register":
		return a.Register(ctx, args)
	case "login":
		return a.Login(ctx, args)
	case "plans":
		return a.Plans(ctx)
	}

	if !a.isLoggedIn() {
		switch cmd {
		case "logout", "upload", "l", "list", "delete", "share", "revoke", "links", "ingest", "quota", "buy", "payments":
			printlnFn("Please log in first")
		default:
			printlnFn("Unknown command:", cmd)
		}
		return nil
	}

	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "upload":
		return a.Upload(ctx, args)
	case "l", "list":
		return a.List(ctx, args)
	case "delete":
		return a.Delete(ctx, args)
	case "share":
		return a.Share(ctx, args)
	case "revoke":
		return a.Revoke(ctx, args)
	case "links":
		return a.Links(ctx)
	case "ingest":
		return a.Ingest(ctx, args)
	case "quota":
		return a.Quota(ctx)
	case "buy":
		return a.Buy(ctx, args)
	case "payments":
		return a.Payments(ctx)
	default:
		printlnFn("Unknown command:", cmd)
		return nil
	}
}
