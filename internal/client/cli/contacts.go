package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

func contactTypeName(t byte) string {
	switch t {
	case frame.ContactTypeChat:
		return "chat"
	case frame.ContactTypeRepeater:
		return "repeater"
	case frame.ContactTypeRoom:
		return "room"
	}
	return "unknown"
}

// Contacts prints the local contact mirror, one line per contact.
func (a *App) Contacts(ctx context.Context) error {
	list, err := a.contacts.List(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if len(list) == 0 {
		fmt.Println("No contacts. Run 'sync' to pull them from the node.")
		return nil
	}

	for _, c := range list {
		route := "flood"
		if c.HasDirectPath() {
			route = fmt.Sprintf("direct(%d)", c.OutPathLen)
		}
		seen := "never"
		if c.LastAdvert > 0 {
			seen = time.Unix(int64(c.LastAdvert), 0).UTC().Format("2006-01-02 15:04")
		}
		fmt.Printf("%s  %-24s %-8s %-10s last advert %s\n",
			c.ShortKey(), c.Name, contactTypeName(c.Type), route, seen)
	}
	return nil
}

// Sync pulls contact changes from the node into the local mirror.
func (a *App) Sync(ctx context.Context) error {
	res, err := a.contacts.Sync(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Synced %d of %d contacts, watermark %d\n", res.Updated, res.Total, res.Watermark)
	return nil
}

// Export prints the signed advert of this node, or of a stored contact
// when one is named, as a hex blob another client can import.
func (a *App) Export(ctx context.Context, args []string) error {
	var (
		advert frame.AdvertBlock
		err    error
	)
	if len(args) == 0 {
		advert, err = a.device.ExportSelf(ctx)
	} else {
		c, rErr := a.contacts.Resolve(ctx, args[0])
		if rErr != nil {
			log.Printf("error: %v", rErr)
			return rErr
		}
		var key [frame.PublicKeySize]byte
		copy(key[:], c.PublicKey)
		advert, err = a.device.ExportContact(ctx, key)
	}
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	raw, err := advert.MarshalBinary()
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("%s (%s)\n", hex.EncodeToString(raw), advert.Name)
	return nil
}

// Import hands a hex advert blob to the node. The node verifies the
// signature before adding the contact.
func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: import <hex>")
		return nil
	}

	raw, err := hex.DecodeString(args[0])
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	advert, err := frame.UnmarshalAdvert(raw)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if err := a.device.ImportContact(ctx, advert); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Imported %q. Run 'sync' to refresh the local mirror.\n", advert.Name)
	return nil
}
