package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"railtycoon.ai/internal/protocol"
	"railtycoon.ai/internal/sim/command"
)

// Scripted client: joins as a company and issues a small loop of commands
// (loan, depots, signs) while printing everything the server sends back.
// Useful for smoke-testing a running server.
func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "company name")
		rate = flag.Duration("rate", 500*time.Millisecond, "delay between commands")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
		Role:            "company",
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("joined client=%d tick=%d map=%dx%d",
		welcome.ClientID, welcome.ServerTick, welcome.WorldParams.MapWidth, welcome.WorldParams.MapHeight)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	// Reader goroutine: print what comes back.
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeResult:
				var res protocol.ResultMsg
				if json.Unmarshal(msg, &res) == nil {
					logger.Printf("RESULT %s ok=%v cost=%d code=%s",
						command.GetName(command.ID(res.Cmd)), res.OK, res.Cost, res.Code)
				}
			case protocol.TypeDigest:
				var d protocol.DigestMsg
				if json.Unmarshal(msg, &d) == nil {
					logger.Printf("DIGEST tick=%d %s", d.Tick, d.Digest[:16])
				}
			case protocol.TypeBatch:
				var b protocol.BatchMsg
				if json.Unmarshal(msg, &b) == nil && len(b.Commands) > 0 {
					logger.Printf("BATCH tick=%d commands=%d", b.Tick, len(b.Commands))
				}
			}
		}
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	tiles := welcome.WorldParams.MapWidth * welcome.WorldParams.MapHeight

	send := func(m protocol.CommandMsg) {
		m.Type = protocol.TypeCommand
		m.ProtocolVersion = protocol.Version
		if err := conn.WriteJSON(m); err != nil {
			logger.Fatalf("send COMMAND: %v", err)
		}
	}

	// Take out a loan first so construction is funded.
	send(protocol.CommandMsg{Cmd: uint32(command.CmdIncreaseLoan), P2: 1})

	ticker := time.NewTicker(*rate)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		tile := uint32(rng.Intn(tiles))
		switch i % 3 {
		case 0:
			send(protocol.CommandMsg{Cmd: uint32(command.CmdBuildDepot), Tile: tile})
		case 1:
			layout := &command.StationLayout{Orientation: uint8(rng.Intn(2)), Offsets: []int32{0, 1}}
			send(protocol.CommandMsg{
				Cmd:     uint32(command.CmdBuildStation),
				Tile:    tile,
				AuxKind: uint8(command.AuxKindStationLayout),
				AuxData: layout.Serialise(),
			})
		case 2:
			send(protocol.CommandMsg{Cmd: uint32(command.CmdPlaceSign), Tile: tile, Text: "bot was here"})
		}
	}
}
