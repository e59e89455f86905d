package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

func keyPrefix(key []byte) [frame.PrefixSize]byte {
	var p [frame.PrefixSize]byte
	copy(p[:], key)
	return p
}

// Login authenticates against a remote node, usually a repeater or a room
// server. The request travels over the mesh; the outcome arrives later as
// a push and is logged by the watcher.
func (a *App) Login(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: login <contact>")
		return nil
	}

	c, err := a.contacts.Resolve(ctx, args[0])
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	password, err := getPassword("Enter password", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	defer common.WipeByteArray(password)

	sent, err := a.device.Login(ctx, keyPrefix(c.PublicKey), string(password))
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Login request sent to %s via %s route, reply expected within %d ms\n",
		c.Name, routeName(sent.RouteType), sent.TimeoutMs)
	return nil
}

// Status requests a status blob from a remote node. The reply arrives as a
// push and is logged by the watcher.
func (a *App) Status(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: status <contact>")
		return nil
	}

	c, err := a.contacts.Resolve(ctx, args[0])
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	sent, err := a.device.StatusReq(ctx, keyPrefix(c.PublicKey))
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Status request sent to %s via %s route, reply expected within %d ms\n",
		c.Name, routeName(sent.RouteType), sent.TimeoutMs)
	return nil
}
