package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Level           int               `json:"level,omitempty"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	SessionID       string          `json:"session_id"`
	SubmitterID     string          `json:"submitter_id"`
	SchedulerParams SchedulerParams `json:"scheduler_params"`
}

type SchedulerParams struct {
	TickRateHz   int `json:"tick_rate_hz"`
	BatchSize    int `json:"batch_size"`
	SubmitterCap int `json:"submitter_cap"`
}

// ACT (client -> server). One queued intent.
type ActMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version,omitempty"`
	Ref             string         `json:"ref,omitempty"`
	Category        string         `json:"category"`
	TargetID        string         `json:"target_id,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
	Timestamp       int64          `json:"timestamp,omitempty"`
	Priority        int            `json:"priority,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type       string `json:"type"`
	Tick       uint64 `json:"t"`
	Ref        string `json:"ref,omitempty"`
	Category   string `json:"category"`
	OK         bool   `json:"ok"`
	Conflicted bool   `json:"conflicted,omitempty"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// STATS_GET (client -> server) is a bare BaseMessage.

// STATS (server -> client)
type StatsMsg struct {
	Type           string  `json:"type"`
	PendingCount   int     `json:"pending_count"`
	ProcessedTotal uint64  `json:"processed_total"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	TickRateHz     int     `json:"tick_rate_hz"`
	BatchSize      int     `json:"batch_size"`
}

// PATH_GET (client -> server)
type PathGetMsg struct {
	Type            string     `json:"type"`
	Ref             string     `json:"ref,omitempty"`
	Start           [3]float64 `json:"start"`
	End             [3]float64 `json:"end"`
	AllowGeneration bool       `json:"allow_generation"`
}

// PATH (server -> client)
type PathMsg struct {
	Type  string     `json:"type"`
	Ref   string     `json:"ref,omitempty"`
	Found bool       `json:"found"`
	Code  string     `json:"code,omitempty"`
	Path  *PathEntry `json:"path,omitempty"`
}

// PathEntry is the wire form of one cached path. Round-tripping an entry
// must reproduce bit-identical waypoints and checksum.
type PathEntry struct {
	Key         string       `json:"key"`
	Start       [3]float64   `json:"start"`
	End         [3]float64   `json:"end"`
	Waypoints   [][3]float64 `json:"waypoints"`
	Length      float64      `json:"length"`
	Checksum    string       `json:"checksum"`
	GeneratedAt int64        `json:"generated_at"`
}

// PATH_SYNC (peer -> server)
type PathSyncMsg struct {
	Type  string      `json:"type"`
	Paths []PathEntry `json:"paths"`
}

// PATH_VALIDATE (peer -> server)
type PathValidateMsg struct {
	Type      string            `json:"type"`
	Ref       string            `json:"ref,omitempty"`
	Checksums map[string]string `json:"checksums"`
}

// PATH_REPORT (server -> peer)
type PathReportMsg struct {
	Type       string   `json:"type"`
	Ref        string   `json:"ref,omitempty"`
	OK         bool     `json:"ok"`
	Mismatched []string `json:"mismatched,omitempty"`
}

// PATH_CHECKSUMS_GET (peer -> server) is a bare BaseMessage.

// PATH_CHECKSUMS (server -> peer)
type PathChecksumsMsg struct {
	Type      string            `json:"type"`
	Checksums map[string]string `json:"checksums"`
}
