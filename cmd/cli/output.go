package main

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/and161185/reflekt/internal/autosave"
	"github.com/and161185/reflekt/internal/journal"
	"github.com/and161185/reflekt/internal/model"
)

const listDate = "Jan 2, 2006"

var blockEnd = strings.NewReplacer("</p>", "\n", "<br>", "\n", "<br/>", "\n", "</li>", "\n")

// plainText renders stored markup for the terminal.
func plainText(content string) string {
	return html.UnescapeString(journal.StripMarkup(blockEnd.Replace(content)))
}

func statusText(s autosave.Status) string {
	switch s {
	case autosave.Saved:
		return color.GreenString(s.String())
	case autosave.Saving:
		return color.YellowString(s.String())
	default:
		return color.RedString(s.String())
	}
}

func printEntry(w io.Writer, e model.Entry) {
	bold := color.New(color.Bold)
	_, _ = fmt.Fprintln(w, bold.Sprint(e.Title))
	meta := fmt.Sprintf("#%d  %s", e.ID, e.CreatedAt.Local().Format(listDate+" 15:04"))
	if e.ImportSource != nil {
		meta += "  imported from " + *e.ImportSource
	}
	_, _ = fmt.Fprintln(w, color.HiBlackString(meta))
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, plainText(e.Content))
}

func printPage(w io.Writer, p model.Page, filtered bool) {
	if len(p.Items) == 0 {
		if filtered {
			_, _ = fmt.Fprintln(w, "No entries found for these filters.")
		} else {
			_, _ = fmt.Fprintln(w, "No entries yet.")
		}
		return
	}
	bold := color.New(color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("Date"), bold.Sprint("Title"))
	for _, e := range p.Items {
		tbl.AddRow(e.ID, e.CreatedAt.Local().Format(listDate), e.Title)
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(w, tbl)

	nav := fmt.Sprintf("Page %d of %d (%d entries)", p.Page, p.TotalPages, p.Total)
	if p.HasPrev() {
		nav += "  --page " + fmt.Sprint(p.Page-1) + " for previous"
	}
	if p.HasNext() {
		nav += "  --page " + fmt.Sprint(p.Page+1) + " for next"
	}
	_, _ = fmt.Fprintln(w, color.HiBlackString(nav))
}

func printSidebar(w io.Writer, entries []model.Entry, now time.Time) {
	groups := journal.GroupEntries(entries, now)
	bold := color.New(color.Bold)
	printed := false
	for _, g := range journal.SidebarGroups {
		es := groups[g]
		if len(es) == 0 {
			continue
		}
		_, _ = fmt.Fprintln(w, bold.Sprint(string(g)))
		tbl := uitable.New()
		tbl.Separator = "  "
		for _, e := range es {
			tbl.AddRow("", e.ID, e.Title)
		}
		tbl.RightAlign(1)
		_, _ = fmt.Fprintln(w, tbl)
		printed = true
	}
	if !printed {
		_, _ = fmt.Fprintln(w, "No recent entries.")
	}
}
