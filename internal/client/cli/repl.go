package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLinked() bool
	Info(ctx context.Context) error
	Time(ctx context.Context, args []string) error
	Battery(ctx context.Context) error
	Contacts(ctx context.Context) error
	Sync(ctx context.Context) error
	Messages(ctx context.Context, args []string) error
	Send(ctx context.Context, args []string) error
	ChSend(ctx context.Context, args []string) error
	Channels(ctx context.Context) error
	SetChannel(ctx context.Context, args []string) error
	Advert(ctx context.Context, args []string) error
	Rename(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	Reboot(ctx context.Context) error
}

const commandList = "Available commands: info, time, battery, (c)ontacts, sync, (m)essages, send, chsend, channels, setchannel, advert, name, login, status, export, import, reboot, exit"

// runREPL starts a simple read–eval–print loop for the companion CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a' with the rest of the line as
// arguments. Unknown commands are reported back to the user. The loop exits
// on scanner EOF or when the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//   - info                     — node identity, radio and firmware details
//   - time [sync]              — read the node clock, or set it from this host
//   - battery                  — battery level
//   - contacts | c             — list the local contact mirror
//   - sync                     — pull contact changes from the node
//   - messages | m [contact]   — recent messages, optionally for one contact
//   - send <contact> <text>    — send a direct message
//   - chsend <idx> <text>      — send on a channel slot
//   - channels                 — list configured channel slots
//   - setchannel <idx> <name>  — program a channel slot from a passphrase
//   - advert [flood]           — advertise this node, zero-hop by default
//   - name <new name>          — rename this node
//   - login <contact>          — authenticate against a remote node
//   - status <contact>         — request a remote node's status
//   - export [contact]         — signed advert of this node or a contact
//   - import <hex>             — import a signed advert
//   - reboot                   — restart the node
//   - exit | quit              — leave the program
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("mc> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if !a.isLinked() {
				printlnFn("Link is down; commands redial on use.")
			}
			printlnFn(commandList)

		case "info":
			_ = a.Info(ctx)

		case "time":
			_ = a.Time(ctx, args)

		case "battery":
			_ = a.Battery(ctx)

		case "c", "contacts":
			_ = a.Contacts(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "m", "messages":
			_ = a.Messages(ctx, args)

		case "send":
			_ = a.Send(ctx, args)

		case "chsend":
			_ = a.ChSend(ctx, args)

		case "channels":
			_ = a.Channels(ctx)

		case "setchannel":
			_ = a.SetChannel(ctx, args)

		case "advert":
			_ = a.Advert(ctx, args)

		case "name":
			_ = a.Rename(ctx, args)

		case "login":
			_ = a.Login(ctx, args)

		case "status":
			_ = a.Status(ctx, args)

		case "export":
			_ = a.Export(ctx, args)

		case "import":
			_ = a.Import(ctx, args)

		case "reboot":
			_ = a.Reboot(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
