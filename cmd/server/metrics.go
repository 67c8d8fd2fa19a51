package main

import (
	"fmt"
	"io"

	"xcombat.dev/internal/observerproto"
	"xcombat.dev/internal/persistence/objstore"
	"xcombat.dev/internal/sim/engine"
)

// writeMetrics renders the Prometheus text exposition format. hub and index
// are optional.
func writeMetrics(w io.Writer, worldID string, m engine.EngineMetrics, hub *observerproto.HubStats, index *observerproto.IndexStats) {
	gauge := func(name, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	}
	counter := func(name, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
	}

	gauge("xcombat_engine_tick", "Current engine tick.")
	fmt.Fprintf(w, "xcombat_engine_tick{world=%q} %d\n", worldID, m.Tick)

	gauge("xcombat_engine_step_ms", "Last tick step duration in milliseconds.")
	fmt.Fprintf(w, "xcombat_engine_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	gauge("xcombat_engine_live", "Live objects by kind.")
	fmt.Fprintf(w, "xcombat_engine_live{world=%q,kind=%q} %d\n", worldID, "projectiles", m.Projectiles)
	fmt.Fprintf(w, "xcombat_engine_live{world=%q,kind=%q} %d\n", worldID, "thrown", m.Thrown)
	fmt.Fprintf(w, "xcombat_engine_live{world=%q,kind=%q} %d\n", worldID, "vehicles", m.Vehicles)
	fmt.Fprintf(w, "xcombat_engine_live{world=%q,kind=%q} %d\n", worldID, "tasks", m.Tasks)

	gauge("xcombat_engine_tick_errors", "Consecutive failed ticks.")
	fmt.Fprintf(w, "xcombat_engine_tick_errors{world=%q} %d\n", worldID, m.ErrorCount)

	counter("xcombat_engine_resets_total", "Clean slate resets after repeated tick errors.")
	fmt.Fprintf(w, "xcombat_engine_resets_total{world=%q} %d\n", worldID, m.ResetTotal)

	counter("xcombat_engine_dropped_batches_total", "Emission batches dropped because the sink fell behind.")
	fmt.Fprintf(w, "xcombat_engine_dropped_batches_total{world=%q} %d\n", worldID, m.Dropped)

	gauge("xcombat_engine_queue_depth", "Pending requests by queue.")
	q := m.QueueDepths
	for _, kv := range []struct {
		name string
		n    int
	}{
		{"inputs", q.Inputs},
		{"requests", q.Requests},
		{"reload", q.Reload},
		{"crawl", q.Crawl},
		{"deaths", q.Deaths},
	} {
		fmt.Fprintf(w, "xcombat_engine_queue_depth{world=%q,queue=%q} %d\n", worldID, kv.name, kv.n)
	}

	if hub != nil {
		gauge("xcombat_ws_clients", "Connected websocket clients.")
		fmt.Fprintf(w, "xcombat_ws_clients{world=%q} %d\n", worldID, hub.Clients)
		counter("xcombat_ws_dropped_total", "Frames dropped for slow websocket clients.")
		fmt.Fprintf(w, "xcombat_ws_dropped_total{world=%q} %d\n", worldID, hub.Dropped)
		counter("xcombat_ws_inputs_total", "Accepted INPUT frames.")
		fmt.Fprintf(w, "xcombat_ws_inputs_total{world=%q} %d\n", worldID, hub.Inputs)
	}
	if index != nil {
		gauge("xcombat_index_queue_depth", "Pending index writes.")
		fmt.Fprintf(w, "xcombat_index_queue_depth{world=%q} %d\n", worldID, index.QueueDepth)
		counter("xcombat_index_dropped_total", "Index writes dropped on a full queue.")
		fmt.Fprintf(w, "xcombat_index_dropped_total{world=%q} %d\n", worldID, index.Dropped)
		counter("xcombat_index_errors_total", "Failed index transactions.")
		fmt.Fprintf(w, "xcombat_index_errors_total{world=%q} %d\n", worldID, index.Errors)
	}
}

func writeMirrorMetrics(w io.Writer, worldID string, st objstore.Stats) {
	fmt.Fprintf(w, "# HELP xcombat_mirror_queue_depth Pending save uploads.\n# TYPE xcombat_mirror_queue_depth gauge\n")
	fmt.Fprintf(w, "xcombat_mirror_queue_depth{world=%q} %d\n", worldID, st.QueueDepth)
	fmt.Fprintf(w, "# HELP xcombat_mirror_uploads_total Save uploads by result.\n# TYPE xcombat_mirror_uploads_total counter\n")
	fmt.Fprintf(w, "xcombat_mirror_uploads_total{world=%q,result=%q} %d\n", worldID, "ok", st.Uploaded)
	fmt.Fprintf(w, "xcombat_mirror_uploads_total{world=%q,result=%q} %d\n", worldID, "failed", st.Failed)
	fmt.Fprintf(w, "xcombat_mirror_uploads_total{world=%q,result=%q} %d\n", worldID, "dropped", st.Dropped)
	fmt.Fprintf(w, "# HELP xcombat_mirror_last_success_unix Last successful upload time.\n# TYPE xcombat_mirror_last_success_unix gauge\n")
	fmt.Fprintf(w, "xcombat_mirror_last_success_unix{world=%q} %d\n", worldID, st.LastSuccess)
}
