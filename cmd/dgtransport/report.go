package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/notargets/DGTransport/dataset"
)

// maxTreeValues limits the array values printed by --dump
const maxTreeValues = 8

func text(n dataset.Node, path string) string {
	if found, ok := dataset.Find(n, path); ok {
		return dataset.Text(found)
	}
	return ""
}

func comma(s string) string {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	return humanize.Comma(v)
}

// writeReport prints the headline numbers of a run tree
func writeReport(w io.Writer, ds dataset.Node) {
	fmt.Fprintf(w, "Run %s (%s)\n", text(ds, "id"), text(ds, "type"))
	if s := text(ds, "mesh/elements"); s != "" {
		fmt.Fprintf(w, "  Mesh: %s elements, %s ordinates, %s groups\n",
			comma(s), comma(text(ds, "mesh/ordinates")), comma(text(ds, "mesh/groups")))
	}
	if psi, ok := dataset.Find(ds, "solution/psi"); ok {
		fmt.Fprintf(w, "  Unknowns: %s\n", humanize.Comma(int64(len(dataset.Value(psi)))))
	}
	fmt.Fprintf(w, "  Solver: %s after %s iterations (%s sweeps), residual %s\n",
		text(ds, "solver/state"), comma(text(ds, "solver/iterations")),
		comma(text(ds, "solver/sweeps")), text(ds, "solver/residual"))
	if k := text(ds, "solution/k"); k != "" {
		fmt.Fprintf(w, "  k-effective: %s\n", k)
	}
	if tr, ok := dataset.Find(ds, "transient"); ok {
		steps := dataset.CountSets(tr, "step")
		fmt.Fprintf(w, "  Transient: %s steps, k-critical %s\n", humanize.Comma(int64(steps)), text(tr, "k-critical"))
	}
	if l2 := text(ds, "reference-error/l2"); l2 != "" {
		fmt.Fprintf(w, "  Reference error: L2 %s, relative max %s\n", l2, text(ds, "reference-error/rinf"))
	}
	if timings, ok := dataset.Find(ds, "timings"); ok && len(dataset.Children(timings)) > 0 {
		fmt.Fprintln(w, "  Timings:")
		for _, e := range dataset.Children(timings) {
			elapsed := text(e, "elapsed")
			if d, err := time.ParseDuration(elapsed); err == nil {
				elapsed = d.Round(time.Microsecond).String()
			}
			fmt.Fprintf(w, "    %-16s %12s  x%s\n", dataset.Name(e), elapsed, comma(text(e, "count")))
		}
	}
}

// formatTree is dataset.Format with long arrays shortened
func formatTree(ds dataset.Node) string {
	var shorten func(n dataset.Node) dataset.Node
	shorten = func(n dataset.Node) dataset.Node {
		return dataset.Match[dataset.Node](n, dataset.Cases[dataset.Node]{
			Set: func(name string, children []dataset.Node) dataset.Node {
				out := make([]dataset.Node, len(children))
				for i, c := range children {
					out[i] = shorten(c)
				}
				return dataset.Set(name, out...)
			},
			String: func(name, value string) dataset.Node { return dataset.String(name, value) },
			Array: func(name string, values []float64) dataset.Node {
				if len(values) <= maxTreeValues {
					return dataset.Array(name, values)
				}
				head := make([]string, maxTreeValues)
				for i := range head {
					head[i] = strconv.FormatFloat(values[i], 'g', 6, 64)
				}
				return dataset.String(name, fmt.Sprintf("%s ... (%s values)",
					strings.Join(head, " "), humanize.Comma(int64(len(values)))))
			},
		})
	}
	return dataset.Format(shorten(ds))
}
