// Tracks per-agent and per-edge time series during a run and produces the
// finalized RunSummary. The collector is append-only while the run is live;
// Finalize returns an immutable snapshot and leaves the collector readable.

package sim

import (
	"math"
	"sort"
)

// AgentRecord is the finalized outcome of one completed agent.
type AgentRecord struct {
	ID         string   `json:"id"`
	TravelTime float64  `json:"travel_time"`
	Delay      float64  `json:"delay"`
	Path       []NodeID `json:"path_nodes"`
	Late       bool     `json:"late"`
}

// EdgeRecord holds the aligned per-tick series for one edge. Every edge gets
// one sample per tick, zero-occupancy ticks included, so all series share the
// same length across the whole run.
type EdgeRecord struct {
	ID            EdgeID `json:"id"`
	Occupancy     []int  `json:"occupancy_over_time"`
	QueueLength   []int  `json:"queue_length_over_time"`
	PeakOccupancy int    `json:"peak_occupancy"`
	Throughput    int    `json:"throughput_count"`
}

// RunSummary is the immutable end-of-run aggregate.
type RunSummary struct {
	TotalAgents     int `json:"total_agents"`
	CompletedAgents int `json:"completed_agents"`
	SkippedLegs     int `json:"skipped_legs"`

	MeanTravelTime float64 `json:"mean_travel_time_s"`
	P50TravelTime  float64 `json:"p50_travel_time_s"`
	P90TravelTime  float64 `json:"p90_travel_time_s"`
	P95TravelTime  float64 `json:"p95_travel_time_s"`
	ClearanceTime  float64 `json:"clearance_time_s"`
	PercentLate    float64 `json:"percent_late"`

	MaxEdgeDensity   int   `json:"max_edge_density"`
	CongestionEvents int   `json:"congestion_events"`
	TotalThroughput  int   `json:"total_throughput"`
	Ticks            int64 `json:"ticks"`
}

// MetricsCollector accumulates run statistics. One instance per run; the
// tick loop is its only writer.
type MetricsCollector struct {
	edgeIdx map[EdgeID]int
	edges   []*EdgeRecord
	agents  []AgentRecord
	ticks   int64
}

// NewMetricsCollector creates a collector covering the given edges. The
// order fixes the EdgeRecords() order.
func NewMetricsCollector(edgeIDs []EdgeID) *MetricsCollector {
	m := &MetricsCollector{
		edgeIdx: make(map[EdgeID]int, len(edgeIDs)),
		edges:   make([]*EdgeRecord, len(edgeIDs)),
	}
	for i, id := range edgeIDs {
		m.edgeIdx[id] = i
		m.edges[i] = &EdgeRecord{ID: id}
	}
	return m
}

// RecordEdgeStep appends one end-of-tick sample for an edge. The tick loop
// calls this once per edge per tick, for every edge in the graph.
func (m *MetricsCollector) RecordEdgeStep(id EdgeID, occupancy, queueLength int) {
	i, ok := m.edgeIdx[id]
	if !ok {
		return
	}
	rec := m.edges[i]
	rec.Occupancy = append(rec.Occupancy, occupancy)
	rec.QueueLength = append(rec.QueueLength, queueLength)
	if occupancy > rec.PeakOccupancy {
		rec.PeakOccupancy = occupancy
	}
}

// RecordEdgeEntry bumps the monotonic throughput counter of an edge.
func (m *MetricsCollector) RecordEdgeEntry(id EdgeID) {
	if i, ok := m.edgeIdx[id]; ok {
		m.edges[i].Throughput++
	}
}

// RecordAgent appends one completed agent's outcome.
func (m *MetricsCollector) RecordAgent(rec AgentRecord) {
	m.agents = append(m.agents, rec)
}

// TickRecorded marks one full tick of edge samples as recorded.
func (m *MetricsCollector) TickRecorded() {
	m.ticks++
}

// EdgeRecords returns the per-edge series in collector order.
func (m *MetricsCollector) EdgeRecords() []*EdgeRecord {
	return m.edges
}

// EdgeRecordFor returns the series for one edge.
func (m *MetricsCollector) EdgeRecordFor(id EdgeID) (*EdgeRecord, bool) {
	i, ok := m.edgeIdx[id]
	if !ok {
		return nil, false
	}
	return m.edges[i], true
}

// AgentRecords returns the completed-agent records in completion order.
func (m *MetricsCollector) AgentRecords() []AgentRecord {
	return m.agents
}

// sortedByTravelTime returns the agent records stably sorted by travel time:
// equal travel times keep their completion order.
func (m *MetricsCollector) sortedByTravelTime() []AgentRecord {
	sorted := make([]AgentRecord, len(m.agents))
	copy(sorted, m.agents)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TravelTime < sorted[j].TravelTime
	})
	return sorted
}

// percentileSorted picks the p-th percentile (p in [0,1]) from an ascending
// slice using the index floor(p·(n−1)).
func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	return sorted[int(math.Floor(p*float64(n-1)))]
}

// mean returns the arithmetic mean, 0 for an empty slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Finalize computes the run summary snapshot. The collector itself stays
// readable and append-only; calling Finalize repeatedly is safe.
func (m *MetricsCollector) Finalize(totalAgents int, skippedLegs int) RunSummary {
	summary := RunSummary{
		TotalAgents:     totalAgents,
		CompletedAgents: len(m.agents),
		SkippedLegs:     skippedLegs,
		Ticks:           m.ticks,
	}

	sorted := m.sortedByTravelTime()
	times := make([]float64, len(sorted))
	late := 0
	for i, rec := range sorted {
		times[i] = rec.TravelTime
		if rec.Late {
			late++
		}
	}
	if len(times) > 0 {
		summary.MeanTravelTime = mean(times)
		summary.P50TravelTime = percentileSorted(times, 0.50)
		summary.P90TravelTime = percentileSorted(times, 0.90)
		summary.P95TravelTime = percentileSorted(times, 0.95)
		summary.ClearanceTime = times[len(times)-1]
		summary.PercentLate = 100 * float64(late) / float64(len(times))
	}

	for _, rec := range m.edges {
		if rec.PeakOccupancy > summary.MaxEdgeDensity {
			summary.MaxEdgeDensity = rec.PeakOccupancy
		}
		for _, q := range rec.QueueLength {
			if q > 0 {
				summary.CongestionEvents++
			}
		}
		summary.TotalThroughput += rec.Throughput
	}
	return summary
}
