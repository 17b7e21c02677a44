package capture

import (
	"encoding/json"
	"fmt"

	"github.com/ysmood/gson"
)

// box holds the size properties of one element.
type box struct {
	ScrollWidth  int `json:"scrollWidth"`
	OffsetWidth  int `json:"offsetWidth"`
	ClientWidth  int `json:"clientWidth"`
	ScrollHeight int `json:"scrollHeight"`
	OffsetHeight int `json:"offsetHeight"`
	ClientHeight int `json:"clientHeight"`
}

// metrics is what prepareScript reports about the document.
type metrics struct {
	Body   box `json:"body"`
	Root   box `json:"root"`
	Hidden int `json:"hidden"`
}

// extent returns the full scrollable size of the document.
func (m metrics) extent() (width, height int) {
	width = max(
		m.Body.ScrollWidth, m.Body.OffsetWidth, m.Body.ClientWidth,
		m.Root.ScrollWidth, m.Root.OffsetWidth, m.Root.ClientWidth,
	)
	height = max(
		m.Body.ScrollHeight, m.Body.OffsetHeight, m.Body.ClientHeight,
		m.Root.ScrollHeight, m.Root.OffsetHeight, m.Root.ClientHeight,
	)
	return width, height
}

// decodeMetrics reads the value returned by prepareScript. The value is
// re-encoded first: gson refuses Unmarshal once a value has been inspected.
func decodeMetrics(v gson.JSON) (metrics, error) {
	var m metrics
	raw := v.JSON("", "")
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("unexpected document metrics %s: %w", raw, err)
	}
	if m.Body == (box{}) && m.Root == (box{}) {
		return m, fmt.Errorf("no document metrics in %s", raw)
	}
	return m, nil
}

// prepareScript hides excluded elements (layout is kept) and measures the
// document. It takes the exclude selector as its only argument.
const prepareScript = `(selector) => {
	let hidden = 0;
	if (selector) {
		document.querySelectorAll(selector).forEach((el) => {
			el.style.setProperty('visibility', 'hidden', 'important');
			hidden++;
		});
	}
	window.scrollTo(0, 0);
	const measure = (el) => el ? {
		scrollWidth: el.scrollWidth, offsetWidth: el.offsetWidth, clientWidth: el.clientWidth,
		scrollHeight: el.scrollHeight, offsetHeight: el.offsetHeight, clientHeight: el.clientHeight,
	} : {};
	return { body: measure(document.body), root: measure(document.documentElement), hidden: hidden };
}`

// prepareExpression is prepareScript applied to selector, for engines that
// evaluate plain expressions.
func prepareExpression(selector string) string {
	arg, _ := json.Marshal(selector)
	return fmt.Sprintf("(%s)(%s)", prepareScript, arg)
}
