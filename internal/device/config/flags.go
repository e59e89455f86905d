package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/mclink/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   TCP listen address
//	-n string   node name
//	-k string   identity key file path
//	-f int      radio frequency, kHz
//	-b int      radio bandwidth, Hz
//	-s int      spreading factor
//	-r int      coding rate
//	-p int      transmit power, dBm
//	-m int      contact table capacity
//	-d int      simulated ack delay, milliseconds
//
// The function filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-n", "-k", "-f", "-b", "-s", "-r", "-p", "-m", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "address and port to listen on")
	fs.StringVar(&cfg.Name, "n", cfg.Name, "node name")
	fs.StringVar(&cfg.IdentityFile, "k", cfg.IdentityFile, "identity key file")

	freqKHz := fs.Int("f", int(cfg.FreqKHz), "radio frequency (in kHz)")
	bwHz := fs.Int("b", int(cfg.BwHz), "radio bandwidth (in Hz)")
	sf := fs.Int("s", int(cfg.SF), "spreading factor")
	cr := fs.Int("r", int(cfg.CR), "coding rate")
	txPower := fs.Int("p", int(cfg.TxPower), "transmit power (in dBm)")

	fs.IntVar(&cfg.MaxContacts, "m", cfg.MaxContacts, "contact table capacity")
	ackDelay := fs.Int("d", int(cfg.AckDelay.Milliseconds()), "ack delay (in milliseconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.FreqKHz = uint32(*freqKHz)
	cfg.BwHz = uint32(*bwHz)
	cfg.SF = byte(*sf)
	cfg.CR = byte(*cr)
	cfg.TxPower = byte(*txPower)
	cfg.AckDelay = time.Duration(*ackDelay) * time.Millisecond
}
