package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mclink/internal/client/models"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// historyLimit bounds how many stored messages a listing prints.
const historyLimit = 20

func routeName(t byte) string {
	if t == frame.RouteTypeFlood {
		return "flood"
	}
	return "direct"
}

// Messages prints recent messages, newest last. With a contact argument it
// prints the history with that contact only. A live link is drained first
// so queued mailbox messages show up.
func (a *App) Messages(ctx context.Context, args []string) error {
	if a.isLinked() {
		if _, err := a.messages.Drain(ctx); err != nil {
			log.Printf("mailbox drain: %v", err)
		}
	}

	var (
		list []models.Message
		err  error
	)
	if len(args) > 0 {
		c, rErr := a.contacts.Resolve(ctx, args[0])
		if rErr != nil {
			log.Printf("error: %v", rErr)
			return rErr
		}
		list, err = a.messages.History(ctx, c.PublicKey, historyLimit)
	} else {
		list, err = a.messages.Recent(ctx, historyLimit)
	}
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if len(list) == 0 {
		fmt.Println("No messages.")
		return nil
	}

	names := a.contactNames(ctx)
	for _, m := range list {
		fmt.Println(formatMessage(m, names))
	}
	return nil
}

// contactNames maps full public keys to display names for listings.
func (a *App) contactNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	list, err := a.contacts.List(ctx)
	if err != nil {
		return names
	}
	for _, c := range list {
		names[c.Key()] = c.Name
	}
	return names
}

func formatMessage(m models.Message, names map[string]string) string {
	peer := "unknown"
	if m.IsChannel() {
		peer = fmt.Sprintf("#%d", m.ChannelIdx)
	} else if len(m.ContactKey) > 0 {
		peer = names[hex.EncodeToString(m.ContactKey)]
		if peer == "" {
			peer = hex.EncodeToString(m.ContactKey[:frame.PrefixSize])
		}
	}

	arrow := "->"
	if m.Direction == models.DirectionIn {
		arrow = "<-"
	}

	suffix := ""
	if m.Direction == models.DirectionOut {
		switch m.Status {
		case models.StatusDelivered:
			suffix = fmt.Sprintf("  (delivered, %d ms)", m.RTTMs)
		case models.StatusFailed:
			suffix = fmt.Sprintf("  (failed after %d attempts)", m.Attempts)
		default:
			suffix = fmt.Sprintf("  (%s)", m.Status)
		}
	}

	ts := time.Unix(int64(m.SenderTS), 0).UTC().Format("2006-01-02 15:04")
	return fmt.Sprintf("%s %s %s: %s%s", ts, arrow, peer, m.Text, suffix)
}

// Send sends a direct message to a contact named by display name or hex
// key prefix. Delivery confirmation arrives later through the watcher.
func (a *App) Send(ctx context.Context, args []string) error {
	if len(args) < 2 {
		printlnFn("Usage: send <contact> <text>")
		return nil
	}

	c, err := a.contacts.Resolve(ctx, args[0])
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	text := strings.Join(args[1:], " ")

	m, err := a.messages.Send(ctx, c.PublicKey, text)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Sent to %s via %s route, waiting for ack\n", c.Name, routeName(m.RouteType))
	return nil
}

// ChSend sends a message on a channel slot. Channel traffic carries no
// ack, so sent is all the confirmation there is.
func (a *App) ChSend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		printlnFn("Usage: chsend <idx> <text>")
		return nil
	}

	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 0 || idx > 255 {
		printlnFn("Usage: chsend <idx> <text>")
		return nil
	}
	text := strings.Join(args[1:], " ")

	if _, err := a.messages.SendChannel(ctx, byte(idx), text); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Sent on channel %d\n", idx)
	return nil
}
