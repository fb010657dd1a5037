package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

const defaultRegressionThreshold = 0.30

var defaultTrackedBenchmarks = map[string][]string{
	"BenchmarkSign":             {"ns/op", "allocs/op"},
	"BenchmarkValidateParallel": {"ns/op", "allocs/op"},
}

var errRegression = errors.New("performance regression threshold exceeded")

// benchSamples maps benchmark name to unit to the values seen across -count runs.
type benchSamples map[string]map[string][]float64

func newBenchcmpCmd() *cobra.Command {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
		track         []string
	)

	cmd := &cobra.Command{
		Use:   "benchcmp",
		Short: "Compare two `go test -bench` outputs and fail on regressions",
		Example: `  go test -run '^$' -bench 'Sign|Validate' -count 5 . > new.txt
  gotoken benchcmp --baseline old.txt --candidate new.txt --threshold 0.2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if baselinePath == "" || candidatePath == "" {
				return errors.New("--baseline and --candidate are required")
			}
			if threshold < 0 {
				return errors.New("--threshold must be >= 0")
			}
			tracked := defaultTrackedBenchmarks
			if len(track) > 0 {
				var err error
				if tracked, err = parseTracked(track); err != nil {
					return err
				}
			}

			baseline, err := readBenchFile(baselinePath, tracked)
			if err != nil {
				return fmt.Errorf("parse baseline: %w", err)
			}
			candidate, err := readBenchFile(candidatePath, tracked)
			if err != nil {
				return fmt.Errorf("parse candidate: %w", err)
			}
			return compareBenchmarks(cmd.OutOrStdout(), tracked, baseline, candidate, threshold)
		},
	}

	cmd.Flags().StringVar(&baselinePath, "baseline", "", "baseline benchmark output")
	cmd.Flags().StringVar(&candidatePath, "candidate", "", "candidate benchmark output")
	cmd.Flags().Float64Var(&threshold, "threshold", defaultRegressionThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	cmd.Flags().StringArrayVar(&track, "track", nil, "benchmark=unit[,unit] to compare (repeatable; replaces the defaults)")
	return cmd
}

func parseTracked(specs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(specs))
	for _, s := range specs {
		name, units, ok := strings.Cut(s, "=")
		if !ok || name == "" || units == "" {
			return nil, fmt.Errorf("track %q: want benchmark=unit[,unit]", s)
		}
		out[name] = append(out[name], strings.Split(units, ",")...)
	}
	return out, nil
}

func compareBenchmarks(out io.Writer, tracked map[string][]string, baseline, candidate benchSamples, threshold float64) error {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	fmt.Fprintln(out, "benchmark metric baseline candidate delta")
	for _, name := range names {
		for _, unit := range tracked[name] {
			base := baseline[name][unit]
			cand := candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}

			baseMedian := median(base)
			candMedian := median(cand)
			if baseMedian <= 0 {
				// allocs/op of 0 cannot regress by ratio; any allocation is a regression.
				if candMedian > 0 {
					failures = append(failures, fmt.Sprintf("%s %s went from 0 to %.3f", name, unit, candMedian))
				}
				fmt.Fprintf(out, "%s %s %.3f %.3f\n", name, unit, baseMedian, candMedian)
				continue
			}

			delta := (candMedian - baseMedian) / baseMedian
			fmt.Fprintf(out, "%s %s %.3f %.3f %+0.2f%%\n", name, unit, baseMedian, candMedian, delta*100)
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, delta*100, threshold*100))
			}
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w:\n  - %s", errRegression, strings.Join(failures, "\n  - "))
	}
	return nil
}

func readBenchFile(path string, tracked map[string][]string) (benchSamples, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseBenchOutput(file, tracked)
}

func parseBenchOutput(r io.Reader, tracked map[string][]string) (benchSamples, error) {
	samples := benchSamples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := normalizeBenchmarkName(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if _, ok := samples[name]; !ok {
			samples[name] = map[string][]float64{}
		}

		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			unit := fields[i+1]
			samples[name][unit] = append(samples[name][unit], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	copied := make([]float64, len(values))
	copy(copied, values)
	sort.Float64s(copied)

	mid := len(copied) / 2
	if len(copied)%2 == 1 {
		return copied[mid]
	}
	return (copied[mid-1] + copied[mid]) / 2
}
