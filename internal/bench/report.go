package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jittakal/rwbuffer/pkg/buffer"
)

const (
	// EventTypeReport is the CloudEvent type of an exported report.
	EventTypeReport = "io.rwbuffer.bench.report"
	EventSource     = "/rwbench"
)

// LatencySummary condenses the samples of one operation kind.
type LatencySummary struct {
	Samples int           `json:"samples"`
	Avg     time.Duration `json:"avg"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
	Max     time.Duration `json:"max"`
}

// summarize must only be called once every worker has returned.
func summarize(t *tachymeter.Tachymeter, wall time.Duration) LatencySummary {
	if t.Count == 0 {
		return LatencySummary{}
	}
	t.SetWallTime(wall)
	m := t.Calc()
	return LatencySummary{
		Samples: m.Count,
		Avg:     m.Time.Avg,
		P50:     m.Time.P50,
		P95:     m.Time.P95,
		P99:     m.Time.P99,
		Max:     m.Time.Max,
	}
}

// Report is the outcome of one run.
type Report struct {
	RunID          string               `json:"run_id"`
	Config         Config               `json:"config"`
	ObservedReads  uint64               `json:"observed_reads"`
	ObservedWrites uint64               `json:"observed_writes"`
	Service        buffer.StatsSnapshot `json:"service"`
	StatsError     string               `json:"stats_error,omitempty"`
	Elapsed        time.Duration        `json:"elapsed"`
	ReadLatency    LatencySummary       `json:"read_latency"`
	WriteLatency   LatencySummary       `json:"write_latency"`
	Mismatches     uint64               `json:"prefix_mismatches"`
	StoppedWorkers uint64               `json:"stopped_workers"`
}

// Consistent reports whether the service counters match what the workers
// observed. It is false when the stats could not be read.
func (r *Report) Consistent() bool {
	return r.StatsError == "" &&
		r.Service.Reads == r.ObservedReads &&
		r.Service.Writes == r.ObservedWrites
}

func (r *Report) ReadsPerSecond() float64 {
	return perSecond(r.ObservedReads, r.Elapsed)
}

func (r *Report) WritesPerSecond() float64 {
	return perSecond(r.ObservedWrites, r.Elapsed)
}

func perSecond(n uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// RenderTable writes a human readable summary to w.
func (r *Report) RenderTable(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"metric", "value"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	t.AppendRows([]table.Row{
		{"run id", r.RunID},
		{"readers", r.Config.Readers},
		{"writers", r.Config.Writers},
		{"elapsed", r.Elapsed.Round(time.Microsecond)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"reads (observed)", r.ObservedReads},
		{"writes (observed)", r.ObservedWrites},
		{"reads (service)", serviceValue(r, r.Service.Reads)},
		{"writes (service)", serviceValue(r, r.Service.Writes)},
		{"buffer length", serviceValue(r, uint64(r.Service.Length))},
		{"reads/s", fmt.Sprintf("%.1f", r.ReadsPerSecond())},
		{"writes/s", fmt.Sprintf("%.1f", r.WritesPerSecond())},
	})
	t.AppendSeparator()
	t.AppendRows(latencyRows("read", r.ReadLatency))
	t.AppendRows(latencyRows("write", r.WriteLatency))
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"prefix mismatches", r.Mismatches},
		{"stopped workers", r.StoppedWorkers},
		{"counters agree", r.Consistent()},
	})

	t.Render()
}

func serviceValue(r *Report, v uint64) any {
	if r.StatsError != "" {
		return "n/a"
	}
	return v
}

func latencyRows(kind string, l LatencySummary) []table.Row {
	return []table.Row{
		{kind + " p50", l.P50},
		{kind + " p95", l.P95},
		{kind + " p99", l.P99},
		{kind + " max", l.Max},
	}
}

// CloudEvent wraps the report in a CloudEvent keyed by the run id.
func (r *Report) CloudEvent() (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetSpecVersion(cloudevents.VersionV1)
	event.SetID(r.RunID)
	event.SetType(EventTypeReport)
	event.SetSource(EventSource)
	event.SetTime(time.Now())
	event.SetExtension("consistent", r.Consistent())

	if err := event.SetData(cloudevents.ApplicationJSON, r); err != nil {
		return event, fmt.Errorf("failed to set report data: %w", err)
	}
	if err := event.Validate(); err != nil {
		return event, fmt.Errorf("invalid report event: %w", err)
	}
	return event, nil
}

// WriteCloudEvent writes the report as a structured-mode CloudEvent.
func (r *Report) WriteCloudEvent(w io.Writer) error {
	event, err := r.CloudEvent()
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report event: %w", err)
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
