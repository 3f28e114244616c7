package hxioc

// SwapMode is an hx-swap strategy for refreshed component markup.
// See https://htmx.org/attributes/hx-swap/.
type SwapMode string

const (
	// SwapOuter replaces the component wrapper. It is the default, since
	// refresh responses include the wrapper.
	SwapOuter SwapMode = "outerHTML"
	// SwapInner keeps the wrapper and replaces its children.
	SwapInner SwapMode = "innerHTML"
	// SwapMorph morphs the wrapper in place (idiomorph extension).
	SwapMorph SwapMode = "morph:outerHTML"
	// SwapNone runs the request for its side effects only.
	SwapNone SwapMode = "none"
)

func (s SwapMode) value() string {
	if s == "" {
		return string(SwapOuter)
	}
	return string(s)
}
