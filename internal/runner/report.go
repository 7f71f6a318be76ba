// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package runner

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/tomtom215/rankbench/internal/database"
	"github.com/tomtom215/rankbench/internal/evaluate"
)

// Report summarizes a finished run. Metric maps are keyed by cutoff.
type Report struct {
	RunID  string `json:"run_id"`
	Ranker string `json:"ranker"`
	Split  string `json:"split"`
	Seed   int64  `json:"seed"`
	Ks     []int  `json:"ks"`

	NDCG      map[int]float64          `json:"ndcg"`
	NDCGStats map[int]evaluate.Summary `json:"ndcg_stats"`
	HitRatio  map[int]float64          `json:"hit_ratio"`
	MRR       float64                  `json:"mrr"`

	// Instances is the number of instances handed to the ranker. Only Scored
	// instances contribute to the metrics.
	Instances int `json:"instances"`
	Scored    int `json:"scored"`
	Malformed int `json:"malformed"`
	Failed    int `json:"failed"`

	// Skipped counts users without an instance.
	Skipped int `json:"skipped"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Results flattens the report into store rows.
func (r *Report) Results() []database.Result {
	out := make([]database.Result, 0, 2*len(r.Ks)+1)
	for _, k := range r.Ks {
		out = append(out,
			database.Result{Metric: "ndcg", K: k, Value: r.NDCG[k]},
			database.Result{Metric: "hit_ratio", K: k, Value: r.HitRatio[k]},
		)
	}
	return append(out, database.Result{Metric: "mrr", Value: r.MRR})
}

// WriteText renders the report as an aligned table.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "ranker\t%s\n", r.Ranker)
	fmt.Fprintf(tw, "split\t%s (seed %d)\n", r.Split, r.Seed)
	fmt.Fprintf(tw, "instances\t%d scored, %d malformed, %d failed, %d users skipped\n",
		r.Scored, r.Malformed, r.Failed, r.Skipped)
	fmt.Fprintf(tw, "duration\t%s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "k\tNDCG\tstd\tHR")
	for _, k := range r.Ks {
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.4f\n", k, r.NDCG[k], r.NDCGStats[k].StdDev, r.HitRatio[k])
	}
	fmt.Fprintf(tw, "MRR\t%.4f\n", r.MRR)
	return tw.Flush()
}
