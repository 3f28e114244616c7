package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxioc"
)

// attrs renders HTMX attributes in a stable order.
func attrs(a templ.Attributes) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(a)) {
		fmt.Fprintf(&b, ` %s="%s"`, k, templ.EscapeString(fmt.Sprint(a[k])))
	}
	return b.String()
}

func markup(fn func(w io.Writer)) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		fn(w)
		return nil
	})
}

func todoListView(ctx context.Context, c *TodoList) templ.Component {
	return markup(func(w io.Writer) {
		s := c.summary.Stats
		fmt.Fprintf(w, `<section class="todos"><p class="stats">%d of %d done`, s.Completed, s.Total)
		if c.summary.Last != "" {
			fmt.Fprintf(w, `, last added: %s`, templ.EscapeString(c.summary.Last))
		}
		io.WriteString(w, `</p>`)

		io.WriteString(w, `<nav>`)
		for _, f := range []Status{"", StatusPending, StatusCompleted} {
			label := string(f)
			if label == "" {
				label = "all"
			}
			class := ""
			if f == c.Filter {
				class = ` class="active"`
			}
			fmt.Fprintf(w, `<button name="status" value="%s"%s%s>%s</button>`,
				f, class, attrs(hxioc.Act(ctx, c, "filter", hxioc.SwapOuter)), label)
		}
		io.WriteString(w, `</nav>`)

		fmt.Fprintf(w, `<form%s><input name="title" placeholder="New todo"><button>Add</button></form>`,
			attrs(hxioc.Act(ctx, c, "add", hxioc.SwapOuter)))
		if c.err != nil {
			fmt.Fprintf(w, `<p class="error">%s</p>`, templ.EscapeString(c.err.Error()))
		}

		io.WriteString(w, `<ul>`)
		toggle := attrs(hxioc.Act(ctx, c, "toggle", hxioc.SwapOuter))
		for _, todo := range c.items {
			fmt.Fprintf(w, `<li class="%s"><button name="id" value="%s"%s>%s</button></li>`,
				todo.Status, templ.EscapeString(todo.ID), toggle, templ.EscapeString(todo.Title))
		}
		io.WriteString(w, `</ul></section>`)
	})
}

func counterView(ctx context.Context, c *Counter) templ.Component {
	return markup(func(w io.Writer) {
		fmt.Fprintf(w, `<button%s>Clicked %d times</button>`,
			attrs(hxioc.Act(ctx, c, "inc", hxioc.SwapOuter)), c.Count)
	})
}

// layout wraps the page body. The state script goes in by hxioc.Page.
func layout(body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, `<!DOCTYPE html><html><head><title>hxioc todos</title>`+
			`<script src="https://unpkg.com/htmx.org@2.0.4"></script></head><body>`)
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
