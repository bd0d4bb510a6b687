// One-shot device sync for a single device, invoked from cron or by hand.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"

	"go-hotspot/device"
	"go-hotspot/utils"
	"go-hotspot/web/controllers"
	"go-hotspot/web/db"
)

func init() {
	utils.LoadEnv()
	db.Connect()
	db.Sync()
}

func main() {
	deviceID := flag.Uint("device", 0, "device id to sync")
	flag.Parse()
	if *deviceID == 0 {
		log.Fatalln("usage: syncjob -device <id>")
	}

	var dev db.Device
	if err := db.DB.First(&dev, *deviceID).Error; err != nil {
		log.Fatalln("device not found:", err)
	}

	store := db.NewVoucherStore(db.DB)
	vouchers, err := store.FindSellable(dev.ID)
	if err != nil {
		log.Fatalln("fetch vouchers:", err)
	}

	result, err := controllers.RunDeviceSync(context.Background(), &dev, vouchers)
	if errors.Is(err, device.ErrOffline) {
		log.Fatalln("device offline:", err)
	}
	if err != nil {
		log.Fatalln("sync failed:", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
}
