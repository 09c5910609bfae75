package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

/*
receiptOutcome is one parsed *_output.json artifact. Intentionally
permissive: unknown fields are ignored so the report survives schema
additions.
*/
type receiptOutcome struct {
	ReceiptID string           `json:"receipt_id"`
	Status    string           `json:"status"`
	Success   bool             `json:"success"`
	Reason    string           `json:"reason"`
	Candidate outcomeCandidate `json:"candidate"`
	Timeline  outcomeTimeline  `json:"timeline"`
}

type outcomeCandidate struct {
	MerchantName string `json:"merchant_name"`
	StoreChainID string `json:"store_chain_id"`
}

type outcomeTimeline struct {
	Stages []stageTiming `json:"stages"`
}

type stageTiming struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"duration_ms"`
}

/*
runReport is the aggregated view over one output root: terminal status
counts, per-chain counts, and per-stage latency percentiles.
*/
type runReport struct {
	OutcomeCount int                       `json:"outcome_count"`
	StatusCounts map[string]int            `json:"status_counts"`
	ChainCounts  map[string]int            `json:"chain_counts"`
	StageLatency map[string]latencySummary `json:"stage_latency"`
	TotalLatency latencySummary            `json:"total_latency"`
}

type latencySummary struct {
	Count int   `json:"count"`
	P50Ms int64 `json:"p50_ms"`
	P95Ms int64 `json:"p95_ms"`
	MaxMs int64 `json:"max_ms"`
}

/*
main scans an output root for *_output.json artifacts and prints terminal
status counts, per-chain counts, and stage latency percentiles. With -json
the aggregate is additionally written to a file.
*/
func main() {
	outDir := flag.String("out", "./out", "Output root produced by the receipt workflow.")
	jsonPath := flag.String("json", "", "Optional path to also write the aggregate report as JSON.")
	flag.Parse()

	tl.Log(
		tl.Notice, palette.BlueBold, "%s over output root '%s'",
		"Building workflow report", *outDir,
	)

	outcomePaths, e := collectOutcomeFiles(*outDir)
	e.QuitIf("error")

	if len(outcomePaths) == 0 {
		tl.Log(tl.Warning, palette.PurpleBold, "No *_output.json files found under '%s'", *outDir)
		os.Exit(0)
	}
	tl.Log(tl.Info1, palette.Cyan, "Found '%s' outcome files under '%s'", fmt.Sprintf("%d", len(outcomePaths)), *outDir)

	report := buildReport(outcomePaths)
	printReport(report)

	if *jsonPath != "" {
		jsonBytes, marshalErr := json.MarshalIndent(report, "", "  ")
		xerr.QuitIfError(marshalErr, "marshal aggregate report to JSON")
		writeErr := os.WriteFile(*jsonPath, jsonBytes, 0o644)
		xerr.QuitIfError(writeErr, "write aggregate report file")
		tl.Log(tl.Info1, palette.Green, "Saved aggregate report to '%s'", *jsonPath)
	}
}

// collectOutcomeFiles walks the output root (debug/ included) for outcome
// artifacts.
func collectOutcomeFiles(outDir string) (paths []string, e *xerr.Error) {
	walkErr := filepath.WalkDir(outDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if strings.HasSuffix(entry.Name(), "_output.json") {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, xerr.NewError(walkErr, "walk output root", outDir)
	}

	sort.Strings(paths)
	return paths, nil
}

func buildReport(outcomePaths []string) runReport {
	report := runReport{
		StatusCounts: make(map[string]int),
		ChainCounts:  make(map[string]int),
		StageLatency: make(map[string]latencySummary),
	}

	stageDurations := make(map[string][]int64)
	var totalDurations []int64

	for _, path := range outcomePaths {
		outcome, loadErr := loadOutcome(path)
		if loadErr != nil {
			tl.Log(tl.Warning, palette.PurpleBright, "Skipping unreadable JSON '%s': %s", path, loadErr)
			continue
		}

		report.OutcomeCount++
		report.StatusCounts[outcome.Status]++

		chain := outcome.Candidate.StoreChainID
		if chain == "" {
			chain = "(unknown)"
		}
		report.ChainCounts[chain]++

		total := int64(0)
		for _, stage := range outcome.Timeline.Stages {
			stageDurations[stage.Name] = append(stageDurations[stage.Name], stage.DurationMs)
			total += stage.DurationMs
		}
		if total > 0 {
			totalDurations = append(totalDurations, total)
		}
	}

	for name, durations := range stageDurations {
		report.StageLatency[name] = summarize(durations)
	}
	report.TotalLatency = summarize(totalDurations)
	return report
}

func loadOutcome(jsonPath string) (outcome receiptOutcome, e *xerr.Error) {
	fileBytes, readErr := os.ReadFile(jsonPath)
	if readErr != nil {
		return outcome, xerr.NewError(readErr, "read outcome JSON", jsonPath)
	}
	if parseErr := json.Unmarshal(fileBytes, &outcome); parseErr != nil {
		return outcome, xerr.NewError(parseErr, "parse outcome JSON", jsonPath)
	}
	return outcome, nil
}

// summarize computes count/p50/p95/max over a duration sample.
func summarize(durations []int64) latencySummary {
	if len(durations) == 0 {
		return latencySummary{}
	}
	sorted := append([]int64(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return latencySummary{
		Count: len(sorted),
		P50Ms: percentile(sorted, 50),
		P95Ms: percentile(sorted, 95),
		MaxMs: sorted[len(sorted)-1],
	}
}

// percentile uses the nearest-rank method over an ascending sample.
func percentile(sorted []int64, p int) int64 {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func printReport(report runReport) {
	tl.Log(tl.Notice1, palette.GreenBold, "%s '%s' outcomes", "Aggregated", fmt.Sprintf("%d", report.OutcomeCount))

	for _, status := range sortedKeys(report.StatusCounts) {
		tl.Log(tl.Info1, palette.Cyan, "status '%s': '%s'", status, fmt.Sprintf("%d", report.StatusCounts[status]))
	}
	for _, chain := range sortedKeys(report.ChainCounts) {
		tl.Log(tl.Info1, palette.Cyan, "chain '%s': '%s'", chain, fmt.Sprintf("%d", report.ChainCounts[chain]))
	}

	stageNames := make([]string, 0, len(report.StageLatency))
	for name := range report.StageLatency {
		stageNames = append(stageNames, name)
	}
	sort.Strings(stageNames)
	for _, name := range stageNames {
		summary := report.StageLatency[name]
		tl.Log(
			tl.Info1, palette.Green, "stage '%s': p50 '%s' ms, p95 '%s' ms, max '%s' ms over '%s' runs",
			name, fmt.Sprintf("%d", summary.P50Ms), fmt.Sprintf("%d", summary.P95Ms),
			fmt.Sprintf("%d", summary.MaxMs), fmt.Sprintf("%d", summary.Count),
		)
	}
	tl.Log(
		tl.Notice1, palette.GreenBold, "end-to-end: p50 '%s' ms, p95 '%s' ms, max '%s' ms",
		fmt.Sprintf("%d", report.TotalLatency.P50Ms), fmt.Sprintf("%d", report.TotalLatency.P95Ms),
		fmt.Sprintf("%d", report.TotalLatency.MaxMs),
	)
}

func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
