// Package report renders session results as terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/engine"
)

func money(v float64) string { return fmt.Sprintf("%.2f", v) }

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

// Outcomes writes one row per buyer and returns how many deals closed
// outside their entry's price band.
func Outcomes(w io.Writer, outcomes []engine.Outcome) int {
	t := newTable(w, "Buyer", "Strategy", "Target", "Seller", "Entry", "Price", "Band", "Rounds", "Check")
	violations := 0
	for _, o := range outcomes {
		if !o.Deal() {
			t.Append([]string{strconv.Itoa(o.Buyer), o.Strategy, money(o.Target), "-", "no deal", "-", "-", "-", ""})
			continue
		}
		check := "ok"
		if !o.InBand {
			check = "OUT OF BAND"
			violations++
		}
		t.Append([]string{
			strconv.Itoa(o.Buyer),
			o.Strategy,
			money(o.Target),
			strconv.Itoa(o.Seller),
			fmt.Sprintf("#%d %s", o.Entry.ID, o.Entry.Description),
			money(o.Price),
			fmt.Sprintf("%s-%s", money(o.Entry.Band.Min), money(o.Entry.Band.Max)),
			strconv.Itoa(o.Rounds),
			check,
		})
	}
	t.Render()
	return violations
}

// Transcripts writes every message exchanged, one table per mailbox.
func Transcripts(w io.Writer, transcripts []engine.Transcript) {
	for _, tr := range transcripts {
		fmt.Fprintf(w, "buyer %d / seller %d\n", tr.Buyer, tr.Seller)
		t := newTable(w, "#", "From", "Intent", "Amount", "Entry", "Note")
		for i, m := range tr.Messages {
			amount := ""
			if m.Amount() != 0 {
				amount = money(m.Amount())
			}
			entry := ""
			if id := m.Entry().ID; id != 0 {
				entry = strconv.Itoa(id)
			}
			t.Append([]string{strconv.Itoa(i + 1), m.From().String(), m.Intent().String(), amount, entry, m.Note()})
		}
		t.Render()
	}
}

// Catalog writes the brand/model availability view.
func Catalog(w io.Writer, summaries []catalog.Summary) {
	t := newTable(w, "Brand", "Model", "Count", "From", "To")
	for _, s := range summaries {
		t.Append([]string{s.Brand, s.Model, strconv.Itoa(s.Count), money(s.MinPrice), money(s.MaxPrice)})
	}
	t.Render()
}
