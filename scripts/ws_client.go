// Package main runs a demo WebSocket client that pushes driver GPS
// points and prints the acks.
package main

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type locationPush struct {
	DriverID string  `json:"driverId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	driverID := os.Getenv("DRIVER_ID")
	if driverID == "" {
		driverID = "d_demo"
	}

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/drivers/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ack map[string]any
			if err := c.ReadJSON(&ack); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %v", ack)
		}
	}()

	// Walk the driver north in small steps.
	lat, lng := 19.4326, -99.1332
	for i := 0; i < 5; i++ {
		push := locationPush{DriverID: driverID, Lat: lat, Lng: lng}
		if err := c.WriteJSON(push); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("WS -> %+v\n", push)
		lat += 0.0005
		time.Sleep(500 * time.Millisecond)
	}

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
