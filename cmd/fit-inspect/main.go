// fit-inspect decodes a single .fit file with the loader's parser and prints
// what the pipeline would see: sample counts, session metrics, and the time
// spent in each training zone. Useful for sanity checking a file before a
// bulk run.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fitsearch/pipeline/pkg/domain/fit_parser"
	"github.com/fitsearch/pipeline/pkg/domain/metrics"
	"github.com/fitsearch/pipeline/pkg/domain/zones"
)

func main() {
	ftp := flag.Float64("ftp", 200, "functional threshold power in watts")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fit-inspect [-ftp watts] <file.fit>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	session, err := fit_parser.Parse(data, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", path, err)
		os.Exit(1)
	}

	hrZones := zones.DefaultHeartRate()
	pwrZones := zones.DefaultPower()
	hrDist := map[string]int{}
	pwrDist := map[string]int{}
	withPower, withHR := 0, 0
	for _, s := range session.Samples {
		if name, ok := zones.Classify(s.HeartRate, hrZones); ok {
			hrDist[name]++
			withHR++
		}
		if name, ok := zones.Classify(s.Power, pwrZones); ok {
			pwrDist[name]++
			withPower++
		}
	}

	m := metrics.Compute(session.Samples, *ftp)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "session\t%s\n", session.ID)
	if date := session.Date(); date != "" {
		fmt.Fprintf(w, "date\t%s\n", date)
	}
	fmt.Fprintf(w, "samples\t%d\n", len(session.Samples))
	fmt.Fprintf(w, "with power\t%d\n", withPower)
	fmt.Fprintf(w, "with heart rate\t%d\n", withHR)
	fmt.Fprintln(w)

	for k, v := range m.Fields() {
		fmt.Fprintf(w, "%s\t%v\n", k, v)
	}
	fmt.Fprintln(w)

	printDist(w, "hr", hrZones, hrDist)
	printDist(w, "power", pwrZones, pwrDist)
	w.Flush()
}

func printDist(w *tabwriter.Writer, label string, table zones.Table, dist map[string]int) {
	for _, z := range table {
		if n := dist[z.Name]; n > 0 {
			fmt.Fprintf(w, "%s %s\t%ds\n", label, z.Name, n)
		}
	}
}
