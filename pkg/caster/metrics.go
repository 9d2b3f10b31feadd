package caster

import (
	"fmt"
	"io"
	"sync/atomic"
)

// sessionMetrics counts session lifecycle events, mirroring the shape of
// pkg/nspkt.Listener's atomic.Uint64 counters in the teacher.
type sessionMetrics struct {
	handshakeFailed   atomic.Uint64
	uploadFailed      atomic.Uint64
	sessionsCompleted atomic.Uint64 // reached PingPong at least once
	sessionsRestarted atomic.Uint64 // any return to Announce after Handshake
	pingsAnswered     atomic.Uint64
	recordsUploaded   atomic.Uint64
}

// WritePrometheus writes session counters in Prometheus text exposition
// format, the same convention as pkg/announce.Listener.WritePrometheus.
func (m *sessionMetrics) WritePrometheus(w io.Writer) {
	fmt.Fprintln(w, `recsync_caster_handshake_failed_total`, m.handshakeFailed.Load())
	fmt.Fprintln(w, `recsync_caster_upload_failed_total`, m.uploadFailed.Load())
	fmt.Fprintln(w, `recsync_caster_sessions_completed_total`, m.sessionsCompleted.Load())
	fmt.Fprintln(w, `recsync_caster_sessions_restarted_total`, m.sessionsRestarted.Load())
	fmt.Fprintln(w, `recsync_caster_pings_answered_total`, m.pingsAnswered.Load())
	fmt.Fprintln(w, `recsync_caster_records_uploaded_total`, m.recordsUploaded.Load())
}
