package catalog

import (
	"fmt"
	"strings"

	"github.com/roach88/stateloop/internal/remote"
)

// Render draws the model as plain text. It is a pure function of m.
func Render(m Model) string {
	var b strings.Builder

	b.WriteString(remote.Match(m.Items, remote.Cases[[]Item, string]{
		NotAsked: func() string { return "items: not loaded (type 'load')\n" },
		Loading:  func() string { return "items: loading...\n" },
		Success: func(items []Item) string {
			visible := m.Visible()
			var lb strings.Builder
			if m.Query != "" {
				fmt.Fprintf(&lb, "items: %d of %d matching %q\n", len(visible), len(items), m.Query)
			} else {
				fmt.Fprintf(&lb, "items: %d\n", len(items))
			}
			for _, it := range visible {
				mark := ""
				if m.IsPending(it.ID) {
					mark = "  (saving)"
				}
				fmt.Fprintf(&lb, "  %-12s %-24s qty %d%s\n", it.ID, it.Name, it.Qty, mark)
			}
			return lb.String()
		},
		Failure: func(e remote.ErrorInfo) string {
			return fmt.Sprintf("items: failed (%s), type 'load' to retry\n", e.Message)
		},
	}))

	if m.Filter != m.Query {
		fmt.Fprintf(&b, "filter: %q (typing)\n", m.Filter)
	}

	if m.DetailID != "" {
		b.WriteString(remote.Match(m.Detail, remote.Cases[Item, string]{
			NotAsked: func() string { return "" },
			Loading:  func() string { return fmt.Sprintf("detail %s: loading...\n", m.DetailID) },
			Success: func(it Item) string {
				return fmt.Sprintf("detail %s: %s, qty %d\n", it.ID, it.Name, it.Qty)
			},
			Failure: func(e remote.ErrorInfo) string {
				return fmt.Sprintf("detail %s: failed (%s)\n", m.DetailID, e.Message)
			},
		}))
	}

	for _, n := range m.Notices {
		fmt.Fprintf(&b, "notice %d [%s] %s\n", n.ID, n.Level, n.Text)
	}
	return b.String()
}
