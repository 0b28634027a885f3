package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"sandcave.dev/internal/protocol"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		rows  = flag.Bool("rows", true, "request the rendered cave with every frame")
		drive = flag.Duration("drive", 0, "send a STEP every interval (0 only watches)")
		until = flag.String("until", "", "send one STEP with until=overflow|blocked after subscribing")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		Rows:            *rows,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}
	if u := strings.TrimSpace(*until); u != "" {
		step := protocol.StepMsg{Type: protocol.TypeStep, ProtocolVersion: protocol.Version, Until: u}
		if err := conn.WriteJSON(step); err != nil {
			logger.Fatalf("send STEP: %v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	msgs := make(chan []byte, 8)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			msgs <- msg
		}
	}()

	var tick <-chan time.Time
	if *drive > 0 {
		t := time.NewTicker(*drive)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-stop:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case <-tick:
			step := protocol.StepMsg{Type: protocol.TypeStep, ProtocolVersion: protocol.Version}
			if err := conn.WriteJSON(step); err != nil {
				logger.Printf("send STEP: %v", err)
				return
			}
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(logger, msg)
		}
	}
}

func handle(logger *log.Logger, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeState:
		var st protocol.StateMsg
		if err := json.Unmarshal(msg, &st); err != nil {
			return
		}
		logger.Printf("STATE tick=%d grains=%d settled=%d status=%s reason=%s", st.Tick, st.Grains, st.Settled, st.Status, st.Reason)
		if st.Overflow != nil {
			logger.Printf("first overflow: grain=%d settled=%d", st.Overflow.Grain, st.Overflow.Settled)
		}
		for _, row := range st.Rows {
			fmt.Println(row)
		}
	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return
		}
		logger.Printf("ERROR code=%s message=%s", e.Code, e.Message)
	}
}
