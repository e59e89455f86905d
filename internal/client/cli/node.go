package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// degrees converts a fixed-point coordinate (degrees times 1e6) to float.
func degrees(v int32) float64 {
	return float64(v) / 1e6
}

// Info prints the node identity together with its radio and firmware
// description.
func (a *App) Info(ctx context.Context) error {
	info, err := a.device.Query(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	self := a.device.Self()

	fmt.Printf("Name:       %s\n", self.Name)
	fmt.Printf("Public key: %x\n", self.PublicKey)
	fmt.Printf("Position:   %.6f, %.6f\n", degrees(self.AdvLat), degrees(self.AdvLon))
	fmt.Printf("Radio:      %d kHz, bw %d Hz, sf %d, cr %d\n",
		self.RadioFreqKHz, self.RadioBwHz, self.RadioSF, self.RadioCR)
	fmt.Printf("Tx power:   %d dBm (max %d)\n", self.TxPower, self.MaxTxPower)
	fmt.Printf("Firmware:   v%d %s (%s)\n", info.FirmwareVer, info.Version, info.FirmwareBuild)
	fmt.Printf("Model:      %s\n", info.Model)
	fmt.Printf("Capacity:   %d contacts, %d channels\n", info.MaxContacts, info.MaxChannels)
	return nil
}

// Time prints the node clock. With the "sync" argument it sets the node
// clock from this host first.
func (a *App) Time(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "sync" {
		now := uint32(time.Now().Unix())
		if err := a.device.SetDeviceTime(ctx, now); err != nil {
			log.Printf("error: %v", err)
			return err
		}
		fmt.Println("Clock set from this host")
	}

	epoch, err := a.device.DeviceTime(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Node time: %s (%d)\n", time.Unix(int64(epoch), 0).UTC().Format(time.RFC3339), epoch)
	return nil
}

// Battery prints the node battery level.
func (a *App) Battery(ctx context.Context) error {
	mv, err := a.device.Battery(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Battery: %d mV (%.2f V)\n", mv, float64(mv)/1000)
	return nil
}

// Rename sets a new advertised name for the node, prompting when the
// command line carried none.
func (a *App) Rename(ctx context.Context, args []string) error {
	name := strings.Join(args, " ")
	if name == "" {
		var err error
		name, err = getSimpleText(a.reader, "Enter node name", os.Stdout)
		if err != nil {
			return err
		}
	}
	if name == "" {
		printlnFn("Usage: name <new name>")
		return nil
	}

	if err := a.device.SetAdvertName(ctx, name); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Println("Success!")
	return nil
}

// Advert asks the node to advertise itself, zero-hop by default or mesh
// wide with the "flood" argument.
func (a *App) Advert(ctx context.Context, args []string) error {
	flood := len(args) > 0 && args[0] == "flood"

	if err := a.device.SendSelfAdvert(ctx, flood); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if flood {
		fmt.Println("Advert queued (flood)")
	} else {
		fmt.Println("Advert queued (zero hop)")
	}
	return nil
}

// Reboot restarts the node.
func (a *App) Reboot(ctx context.Context) error {
	if err := a.device.Reboot(ctx); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Println("Reboot requested, the link will drop")
	return nil
}
