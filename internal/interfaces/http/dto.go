package http

import (
	"time"

	"github.com/jhoicas/stock-consolidator/internal/application/consolidation"
	"github.com/jhoicas/stock-consolidator/internal/application/scheduler"
	"github.com/jhoicas/stock-consolidator/internal/application/tracking"
	"github.com/jhoicas/stock-consolidator/internal/domain/entity"
)

// ErrorResponse cuerpo de error estándar.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SweepResponse resultado de un barrido.
type SweepResponse struct {
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Pallets    int       `json:"pallets"`
	Failed     int       `json:"failed"`
	Applied    int       `json:"applied"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
	Relocated  int       `json:"relocated"`
	Emptied    int       `json:"emptied"`
}

// PalletResponse resultado de consolidar un palet.
type PalletResponse struct {
	PalletID  int64 `json:"pallet_id"`
	Applied   int   `json:"applied"`
	Waiting   int   `json:"waiting"`
	Created   int   `json:"created"`
	Updated   int   `json:"updated"`
	Deleted   int   `json:"deleted"`
	Discarded int   `json:"discarded"`
	Relocated int   `json:"relocated"`
	Emptied   bool  `json:"emptied"`
}

// ScanResponse resultado del último escaneo de traslados.
type ScanResponse struct {
	Observed    int `json:"observed"`
	Transitions int `json:"transitions"`
	Notified    int `json:"notified"`
	Failed      int `json:"failed"`
	Pruned      int `json:"pruned"`
}

// LoopResponse estado de un bucle del scheduler.
type LoopResponse struct {
	Name           string    `json:"name"`
	IntervalMS     int64     `json:"interval_ms"`
	Runs           int64     `json:"runs"`
	Skipped        int64     `json:"skipped"`
	Failures       int64     `json:"failures"`
	Running        bool      `json:"running"`
	LastStarted    time.Time `json:"last_started"`
	LastDurationMS int64     `json:"last_duration_ms"`
	LastError      string    `json:"last_error,omitempty"`
}

// StatusResponse estado del proceso.
type StatusResponse struct {
	Loops     []LoopResponse `json:"loops"`
	LastSweep SweepResponse  `json:"last_sweep"`
	LastScan  ScanResponse   `json:"last_scan"`
	Notifier  string         `json:"notifier,omitempty"`
}

// LogEntryResponse entrada del log de un palet.
type LogEntryResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func toSweepResponse(r consolidation.SweepReport) SweepResponse {
	return SweepResponse{
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
		Pallets:    r.Pallets,
		Failed:     r.Failed,
		Applied:    r.Applied,
		Created:    r.Created,
		Updated:    r.Updated,
		Deleted:    r.Deleted,
		Relocated:  r.Relocated,
		Emptied:    r.Emptied,
	}
}

func toPalletResponse(r consolidation.PalletResult) PalletResponse {
	return PalletResponse{
		PalletID:  r.PalletID,
		Applied:   r.Applied,
		Waiting:   r.Waiting,
		Created:   r.Created,
		Updated:   r.Updated,
		Deleted:   r.Deleted,
		Discarded: r.Discarded,
		Relocated: r.Relocated,
		Emptied:   r.Emptied,
	}
}

func toScanResponse(r tracking.ScanReport) ScanResponse {
	return ScanResponse{
		Observed:    r.Observed,
		Transitions: r.Transitions,
		Notified:    r.Notified,
		Failed:      r.Failed,
		Pruned:      r.Pruned,
	}
}

func toLoopResponse(s scheduler.Stats) LoopResponse {
	return LoopResponse{
		Name:           s.Name,
		IntervalMS:     s.Interval.Milliseconds(),
		Runs:           s.Runs,
		Skipped:        s.Skipped,
		Failures:       s.Failures,
		Running:        s.Running,
		LastStarted:    s.LastStarted,
		LastDurationMS: s.LastDuration.Milliseconds(),
		LastError:      s.LastError,
	}
}

func toLogEntryResponses(entries []*entity.LogEntry) []LogEntryResponse {
	out := make([]LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntryResponse{
			ID:        e.ID,
			Action:    e.Action,
			Detail:    e.Detail,
			UserID:    e.UserID,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
