package hxioc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/pthm/hxioc/lib/container"
	"github.com/pthm/hxioc/lib/decorator"
	"github.com/pthm/hxioc/lib/state"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func text(format string, args ...any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	})
}

// pageTitle is a page-level service settled on BeforeFrontRenderEvent.
type pageTitle struct {
	Title    string `json:"title"`
	rendered int
}

func (p *pageTitle) OnFrontRender(BeforeFrontRenderEvent) {
	p.rendered++
	if p.Title == "" {
		p.Title = "Home"
	}
}

// counter is a component with one piece of state and an increment action.
type counter struct {
	Component
	Count int `json:"count"`

	title *pageTitle
	trace []string
}

func (c *counter) BeforeCreate() { c.trace = append(c.trace, "beforeCreate") }
func (c *counter) Created()      { c.trace = append(c.trace, "created") }
func (c *counter) BeforeDestroy() {
	c.trace = append(c.trace, "beforeDestroy")
}
func (c *counter) Destroyed() { c.trace = append(c.trace, "destroyed") }

func (c *counter) Render(context.Context) templ.Component {
	return text("<span>%s count:%d</span>", c.title.Title, c.Count)
}

var counterDef = Define("counter", func(r container.Resolver) (*counter, error) {
	title, err := container.Get[*pageTitle](r)
	if err != nil {
		return nil, err
	}
	return &counter{title: title}, nil
}).Action("inc", func(_ context.Context, c *counter, r *http.Request) error {
	c.Count++
	return nil
}).Action("fail", func(context.Context, *counter, *http.Request) error {
	return errors.New("action failed")
})

// vault is like counter but its tokens are encrypted.
type vault struct {
	Component
	Secret string `json:"secret"`
}

func (v *vault) Render(context.Context) templ.Component {
	return text("<span>secret:%s</span>", v.Secret)
}

var vaultDef = Define("vault", func(container.Resolver) (*vault, error) {
	return &vault{}, nil
}).Sealed()

// broken fails to render and shows a fallback.
type broken struct {
	Component
}

func (b *broken) Render(context.Context) templ.Component {
	return templ.ComponentFunc(func(context.Context, io.Writer) error {
		return errors.New("render failed")
	})
}

func (b *broken) RenderError(_ context.Context, err error) templ.Component {
	return text("<p>fallback: %v</p>", err)
}

var brokenDef = Define("broken", func(container.Resolver) (*broken, error) {
	return &broken{}, nil
})

// legacy renders through the hook convention instead of the Renderer
// interface, and prefetches on the server.
type legacy struct {
	Component
	Items []string `json:"items"`
}

func (l *legacy) ServerPrefetch(context.Context) error {
	l.Items = append(l.Items, "prefetched")
	return nil
}

func (l *legacy) Render() templ.Component {
	return text("<ul>%d</ul>", len(l.Items))
}

var legacyDef = Define("legacy", func(container.Resolver) (*legacy, error) {
	return &legacy{}, nil
})

// greeting takes its name from the code mounting it.
type greeting struct {
	Component
	props        greetingProps
	nameAtCreate string
}

type greetingProps struct {
	Name string `json:"name"`
}

var _ PropsReceiver[greetingProps] = (*greeting)(nil)

func (g *greeting) SetProps(p greetingProps) { g.props = p }
func (g *greeting) BeforeCreate()            { g.nameAtCreate = g.props.Name }

func (g *greeting) Render(context.Context) templ.Component {
	return text("<p>hello %s</p>", g.props.Name)
}

var greetingDef = Define("greeting", func(container.Resolver) (*greeting, error) {
	return &greeting{}, nil
})

func init() {
	state.Serializable[pageTitle]("page", "Title")
	state.Serializable[counter]("counter", "Count")
	state.Serializable[vault]("vault", "Secret")
	state.Serializable[legacy]("legacy", "Items")
	decorator.Apply[pageTitle]("OnFrontRender", decorator.Listen[BeforeFrontRenderEvent]())
}

func appBindings(c *container.Container) error {
	return container.Bind(c, func(container.Resolver) (*pageTitle, error) {
		return &pageTitle{}, nil
	})
}
