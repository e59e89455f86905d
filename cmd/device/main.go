package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/mclink/internal/device"
	"github.com/dmitrijs2005/mclink/internal/device/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := device.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
