package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lockstep/internal/nav"
	"lockstep/internal/protocol"
	"lockstep/internal/sched"
	"lockstep/internal/world"
)

// Server bridges websocket clients to the scheduler and the path cache.
// One connection is one submitter.
type Server struct {
	sched *sched.Scheduler
	world *world.State
	paths *nav.Cache
	log   *log.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]chan []byte // submitter id -> outbound frames
}

func NewServer(s *sched.Scheduler, st *world.State, paths *nav.Cache, logger *log.Logger) *Server {
	return &Server{
		sched: s,
		world: st,
		paths: paths,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: make(map[string]chan []byte),
	}
}

// Notify implements sched.Notifier: results fan out to the submitter's and
// target's connections without ever blocking the scheduler.
func (s *Server) Notify(submitterID string, res sched.Result) {
	s.mu.Lock()
	out := s.sessions[submitterID]
	s.mu.Unlock()
	if out == nil {
		return
	}
	b, err := json.Marshal(resultMsg(res))
	if err != nil {
		return
	}
	sendLatest(out, b)
}

func resultMsg(res sched.Result) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:       protocol.TypeResult,
		Tick:       res.Tick,
		Ref:        res.Action.Ref,
		Category:   res.Action.Category,
		OK:         res.OK,
		Conflicted: res.Conflicted,
		Code:       res.Code,
		Message:    res.Error,
		Timestamp:  res.Timestamp,
	}
}

// sendLatest drops the oldest queued frame when the client cannot keep up.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		submitterID, out := s.handshake(conn)
		if submitterID == "" {
			return
		}
		defer s.dropSession(submitterID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeAct:
				s.handleAct(submitterID, out, msg)
			case protocol.TypeStatsGet:
				s.handleStatsGet(out)
			case protocol.TypePathGet:
				s.handlePathGet(out, msg)
			case protocol.TypePathSync:
				s.handlePathSync(msg)
			case protocol.TypePathValidate:
				s.handlePathValidate(out, msg)
			case protocol.TypePathChecksumsGet:
				s.handlePathChecksumsGet(out)
			}
		}
	}
}

// handshake runs HELLO -> WELCOME, joins the world and registers the
// session. Returns ("", nil) on failure.
func (s *Server) handshake(conn *websocket.Conn) (string, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello || hello.ClientName == "" {
		return "", nil
	}

	sub := s.world.Join(hello.ClientName, hello.Level)
	stats := s.sched.GetStatistics()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		SubmitterID:     sub.ID,
		SchedulerParams: protocol.SchedulerParams{
			TickRateHz:   stats.TickRateHz,
			BatchSize:    stats.BatchSize,
			SubmitterCap: stats.SubmitterCap,
		},
	}
	if err := conn.WriteJSON(welcome); err != nil {
		s.world.Leave(sub.ID)
		return "", nil
	}

	queue := hello.Capabilities.MaxQueue
	if queue <= 0 {
		queue = 64
	}
	out := make(chan []byte, queue)
	s.mu.Lock()
	s.sessions[sub.ID] = out
	s.mu.Unlock()

	s.log.Printf("session open submitter=%s name=%s level=%d", sub.ID, hello.ClientName, hello.Level)
	return sub.ID, out
}

func (s *Server) dropSession(submitterID string) {
	s.mu.Lock()
	delete(s.sessions, submitterID)
	s.mu.Unlock()
	s.world.Leave(submitterID)
	s.log.Printf("session closed submitter=%s", submitterID)
}

func (s *Server) handleAct(submitterID string, out chan []byte, msg []byte) {
	var act protocol.ActMsg
	if err := json.Unmarshal(msg, &act); err != nil {
		s.reject(out, "", "", protocol.ErrProtoBadRequest, "malformed ACT")
		return
	}
	err := s.sched.Submit(sched.Action{
		Ref:         act.Ref,
		SubmitterID: submitterID,
		Category:    act.Category,
		TargetID:    act.TargetID,
		Payload:     act.Payload,
		Timestamp:   act.Timestamp,
		Priority:    act.Priority,
	})
	if err != nil {
		code := protocol.ErrInternal
		msg := err.Error()
		if ae, ok := err.(*sched.AdmissionError); ok {
			code, msg = ae.Code, ae.Msg
		}
		s.reject(out, act.Ref, act.Category, code, msg)
	}
}

// reject reports a synchronous admission failure as a RESULT frame.
func (s *Server) reject(out chan []byte, ref, category, code, msg string) {
	b, err := json.Marshal(protocol.ResultMsg{
		Type:     protocol.TypeResult,
		Ref:      ref,
		Category: category,
		OK:       false,
		Code:     code,
		Message:  msg,
	})
	if err != nil {
		return
	}
	sendLatest(out, b)
}

func (s *Server) handleStatsGet(out chan []byte) {
	st := s.sched.GetStatistics()
	b, err := json.Marshal(protocol.StatsMsg{
		Type:           protocol.TypeStats,
		PendingCount:   st.PendingCount,
		ProcessedTotal: st.ProcessedTotal,
		AvgLatencyMs:   st.AvgLatencyMs,
		TickRateHz:     st.TickRateHz,
		BatchSize:      st.BatchSize,
	})
	if err != nil {
		return
	}
	sendLatest(out, b)
}

func (s *Server) handlePathGet(out chan []byte, msg []byte) {
	var req protocol.PathGetMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}
	start := nav.Point3{X: req.Start[0], Y: req.Start[1], Z: req.Start[2]}
	end := nav.Point3{X: req.End[0], Y: req.End[1], Z: req.End[2]}

	resp := protocol.PathMsg{Type: protocol.TypePath, Ref: req.Ref}
	p, err := s.paths.GetPath(start, end, req.AllowGeneration)
	switch {
	case err == nav.ErrNotFound:
		resp.Code = protocol.ErrNotFound
	case err != nil:
		resp.Code = protocol.ErrInternal
		s.log.Printf("path get: %v", err)
	default:
		entry := ToEntry(p)
		resp.Found = true
		resp.Path = &entry
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	sendLatest(out, b)
}

func (s *Server) handlePathSync(msg []byte) {
	var req protocol.PathSyncMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}
	paths := make([]nav.CachedPath, 0, len(req.Paths))
	for _, e := range req.Paths {
		paths = append(paths, FromEntry(e))
	}
	s.paths.SynchronizePaths(paths)
	s.log.Printf("synchronized %d peer paths", len(paths))
}

func (s *Server) handlePathValidate(out chan []byte, msg []byte) {
	var req protocol.PathValidateMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return
	}
	ok, mismatched := s.paths.ValidateCache(req.Checksums)
	b, err := json.Marshal(protocol.PathReportMsg{
		Type:       protocol.TypePathReport,
		Ref:        req.Ref,
		OK:         ok,
		Mismatched: mismatched,
	})
	if err != nil {
		return
	}
	sendLatest(out, b)
}

func (s *Server) handlePathChecksumsGet(out chan []byte) {
	sums, err := s.paths.Checksums()
	if err != nil {
		s.log.Printf("path checksums: %v", err)
		return
	}
	b, err := json.Marshal(protocol.PathChecksumsMsg{
		Type:      protocol.TypePathChecksums,
		Checksums: sums,
	})
	if err != nil {
		return
	}
	sendLatest(out, b)
}
