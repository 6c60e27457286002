package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"lockstep/internal/protocol"
)

// A small load client: joins, streams movement and trade intents, and
// prints the results coming back.
func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "client name")
		level = flag.Int("level", 1, "submitter level")
		rate  = flag.Duration("rate", 500*time.Millisecond, "delay between submissions")
		seed  = flag.Int64("seed", 0, "rng seed (0 = time-based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Level:           *level,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 64},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	// Submission loop.
	go func() {
		seq := 0
		for {
			time.Sleep(*rate)
			seq++
			act := protocol.ActMsg{
				Type:            protocol.TypeAct,
				ProtocolVersion: protocol.Version,
				Ref:             fmt.Sprintf("%s-%d", *name, seq),
				Category:        "MOVE",
				Payload: map[string]any{
					"to": []any{
						float64(rng.Intn(40000) - 20000),
						0.0,
						float64(rng.Intn(40000) - 20000),
					},
				},
			}
			if err := conn.WriteJSON(act); err != nil {
				return
			}
			if seq%10 == 0 {
				_ = conn.WriteJSON(protocol.BaseMessage{Type: protocol.TypeStatsGet})
			}
		}
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME submitter=%s tick_rate=%d batch=%d",
				w.SubmitterID, w.SchedulerParams.TickRateHz, w.SchedulerParams.BatchSize)

		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			switch {
			case r.OK:
				logger.Printf("OK   t=%d ref=%s %s", r.Tick, r.Ref, r.Category)
			case r.Conflicted:
				logger.Printf("LOST t=%d ref=%s %s: %s", r.Tick, r.Ref, r.Category, r.Message)
			default:
				logger.Printf("FAIL t=%d ref=%s %s [%s]: %s", r.Tick, r.Ref, r.Category, r.Code, r.Message)
			}

		case protocol.TypeStats:
			var s protocol.StatsMsg
			if err := json.Unmarshal(msg, &s); err != nil {
				continue
			}
			logger.Printf("STATS pending=%d processed=%d avg_latency=%.2fms",
				s.PendingCount, s.ProcessedTotal, s.AvgLatencyMs)
		}
	}
}
