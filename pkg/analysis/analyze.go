// Package analysis cross-tabulates effective job states against parameter
// values to rank risky and stable values. Pure computation over resolved
// collection views.
package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/fleetworks/goherd/pkg/collection"
	"github.com/fleetworks/goherd/pkg/lineage"
)

const (
	DefaultMinSupport = 3
	DefaultTopK       = 10
)

// Options control one analysis pass.
type Options struct {
	Mode  lineage.Mode
	Group string

	// Params restricts analysis to these parameter keys. Empty means every
	// key present in the collection.
	Params []string

	// MinSupport is the minimum number of settled jobs (failed+completed)
	// a value needs before its failure rate is considered meaningful.
	MinSupport int

	TopK int
}

// ValueStats is the cross-tabulation for one (parameter, value) pair.
type ValueStats struct {
	Param string `json:"param"`
	Value string `json:"value"`
	Total int    `json:"n"`

	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Running   int `json:"running"`
	Pending   int `json:"pending"`
	Unknown   int `json:"unknown"`

	// FailureRate and CompletionRate are computed over settled jobs only.
	// They are meaningless when LowSupport is set.
	FailureRate    float64 `json:"failure_rate"`
	CompletionRate float64 `json:"completion_rate"`

	// LowSupport marks a value whose settled count is below min support.
	// Low-support values are reported but excluded from ranking.
	LowSupport bool `json:"low_support"`
}

func (v *ValueStats) settled() int { return v.Completed + v.Failed }

// ParamResult groups the value stats for one parameter key, riskiest first.
type ParamResult struct {
	Param  string       `json:"param"`
	Values []ValueStats `json:"values"`
}

// Report is a full analysis payload, renderable as a table or JSON.
type Report struct {
	Summary    collection.Summary `json:"summary"`
	Parameters []ParamResult      `json:"parameters"`
	TopRisky   []ValueStats       `json:"top_risky_values"`
	TopStable  []ValueStats       `json:"top_stable_values"`

	// SkippedParams are requested keys absent from every job.
	SkippedParams []string `json:"skipped_params,omitempty"`

	Mode       lineage.Mode `json:"attempt_mode"`
	Group      string       `json:"submission_group,omitempty"`
	MinSupport int          `json:"min_support"`
	TopK       int          `json:"top_k"`
}

// Analyze resolves every logical job under the requested mode/group and
// cross-tabulates states per parameter value.
func Analyze(c *collection.Collection, opts Options) (*Report, error) {
	if opts.Mode == "" {
		opts.Mode = lineage.ModeLatest
	}
	if !lineage.ValidMode(opts.Mode) {
		return nil, fmt.Errorf("attempt mode must be %q or %q", lineage.ModePrimary, lineage.ModeLatest)
	}
	if opts.MinSupport == 0 {
		opts.MinSupport = DefaultMinSupport
	}
	if opts.MinSupport < 1 {
		return nil, fmt.Errorf("min support must be >= 1")
	}
	if opts.TopK == 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopK < 1 {
		return nil, fmt.Errorf("top k must be >= 1")
	}

	rows := lineage.ResolveAll(c, opts.Mode, opts.Group)

	report := &Report{
		Summary:    lineage.Summarize(rows),
		Mode:       opts.Mode,
		Group:      opts.Group,
		MinSupport: opts.MinSupport,
		TopK:       opts.TopK,
	}

	available := availableParams(c)
	params := available
	if len(opts.Params) > 0 {
		params = dedupe(opts.Params)
		availableSet := make(map[string]struct{}, len(available))
		for _, p := range available {
			availableSet[p] = struct{}{}
		}
		for _, p := range params {
			if _, ok := availableSet[p]; !ok {
				report.SkippedParams = append(report.SkippedParams, p)
			}
		}
	}

	var all []ValueStats
	for _, param := range params {
		values := tabulate(c, rows, param, opts.MinSupport)
		if len(values) == 0 {
			continue
		}
		sortRisky(values)
		report.Parameters = append(report.Parameters, ParamResult{Param: param, Values: values})
		all = append(all, values...)
	}

	eligible := make([]ValueStats, 0, len(all))
	for _, v := range all {
		if !v.LowSupport {
			eligible = append(eligible, v)
		}
	}

	risky := append([]ValueStats(nil), eligible...)
	sortRisky(risky)
	report.TopRisky = truncate(risky, opts.TopK)

	stable := append([]ValueStats(nil), eligible...)
	sortStable(stable)
	report.TopStable = truncate(stable, opts.TopK)

	return report, nil
}

func tabulate(c *collection.Collection, rows []lineage.Effective, param string, minSupport int) []ValueStats {
	byValue := make(map[string]*ValueStats)

	for i, job := range c.Jobs {
		raw, ok := job.Parameters[param]
		if !ok {
			continue
		}
		key := FormatValue(raw)
		v := byValue[key]
		if v == nil {
			v = &ValueStats{Param: param, Value: key}
			byValue[key] = v
		}
		v.Total++
		switch rows[i].State {
		case collection.StateCompleted:
			v.Completed++
		case collection.StateFailed:
			v.Failed++
		case collection.StateRunning:
			v.Running++
		case collection.StatePending:
			v.Pending++
		default:
			v.Unknown++
		}
	}

	out := make([]ValueStats, 0, len(byValue))
	for _, v := range byValue {
		if settled := v.settled(); settled >= minSupport {
			v.FailureRate = float64(v.Failed) / float64(settled)
			v.CompletionRate = float64(v.Completed) / float64(settled)
		} else {
			v.LowSupport = true
		}
		out = append(out, *v)
	}
	return out
}

// FormatValue serializes a parameter value to a stable, display-safe string
// key. Composite values use canonical JSON so equal structures always map to
// the same bucket.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func availableParams(c *collection.Collection) []string {
	seen := make(map[string]struct{})
	for _, j := range c.Jobs {
		for k := range j.Parameters {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// sortRisky orders by failure rate descending; ties go to the larger sample,
// then to natural value order so output is deterministic.
func sortRisky(values []ValueStats) {
	sort.SliceStable(values, func(i, j int) bool {
		a, b := values[i], values[j]
		if a.LowSupport != b.LowSupport {
			return b.LowSupport
		}
		if a.FailureRate != b.FailureRate {
			return a.FailureRate > b.FailureRate
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Param != b.Param {
			return a.Param < b.Param
		}
		return a.Value < b.Value
	})
}

func sortStable(values []ValueStats) {
	sort.SliceStable(values, func(i, j int) bool {
		a, b := values[i], values[j]
		if a.CompletionRate != b.CompletionRate {
			return a.CompletionRate > b.CompletionRate
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Param != b.Param {
			return a.Param < b.Param
		}
		return a.Value < b.Value
	})
}

func truncate(values []ValueStats, k int) []ValueStats {
	if len(values) <= k {
		return values
	}
	return values[:k]
}
