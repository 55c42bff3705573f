package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"expensetracker/internal/core"
)

const missing = "-"

func writeTable(w io.Writer, records []core.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No expenses.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tNAME\tCATEGORY\tAMOUNT\tMETHOD\tSTATUS")
	for _, r := range records {
		amount := missing
		if r.Amount != nil {
			amount = core.FormatAmount(*r.Amount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, text(r.Date), text(r.Name), text(r.Category), amount, text(r.Method), text(r.Status))
	}
	return tw.Flush()
}

func text(s *string) string {
	if s == nil || *s == "" {
		return missing
	}
	return *s
}
