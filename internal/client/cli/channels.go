package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// Channels prints the configured channel slots.
func (a *App) Channels(ctx context.Context) error {
	info, err := a.device.Query(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	shown := 0
	for idx := 0; idx < int(info.MaxChannels); idx++ {
		ch, err := a.device.Channel(ctx, byte(idx))
		if err != nil {
			log.Printf("error: %v", err)
			return err
		}
		if ch.Name == "" && ch.Secret == [frame.SecretSize]byte{} {
			continue
		}
		fmt.Printf("%2d  %-24s secret %x\n", ch.Index, ch.Name, ch.Secret[:4])
		shown++
	}
	if shown == 0 {
		fmt.Println("No channels configured.")
	}
	return nil
}

// SetChannel programs a channel slot. The shared secret is derived from a
// passphrase read without echo, so everyone entering the same passphrase
// lands on the same channel.
func (a *App) SetChannel(ctx context.Context, args []string) error {
	if len(args) < 2 {
		printlnFn("Usage: setchannel <idx> <name>")
		return nil
	}

	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 0 || idx > 255 {
		printlnFn("Usage: setchannel <idx> <name>")
		return nil
	}
	name := strings.Join(args[1:], " ")

	passphrase, err := getPassword("Enter channel passphrase", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	defer common.WipeByteArray(passphrase)

	if err := a.device.SetChannelPassphrase(ctx, byte(idx), name, string(passphrase)); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Channel %d is now %q\n", idx, name)
	return nil
}
