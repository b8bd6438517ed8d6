package room

import (
	"fmt"
	"io"
	"strings"
)

// Datastar-compatible SSE event names.
const (
	eventMergeFragments = "datastar-merge-fragments"
	eventMergeSignals   = "datastar-merge-signals"
)

// Inline SSE bodies returned directly from POST handlers. These bypass
// the renderer so the error path has no failure mode of its own; the
// markup matches what the client merges for major errors.
const (
	missingCookieBody = "event: datastar-merge-fragments\ndata:fragments <div id='chat-container'><h1 class='major-error-message'>Unable to find connection ID cookie - refresh to attempt to recover</h1><div class='button-center'><button class='big' onclick='window.location.reload()'>Refresh</button></div></div>\n\n"

	missingCookieInlineBody = "event: datastar-merge-fragments\ndata: fragments <div class='error-message'>Missing connection ID cookie</div>\n\n"

	roomNotFoundInlineBody = "event: datastar-merge-fragments\ndata: fragments <div class='error-message'>Room not found</div>\n\n"
)

// writePrimer emits the empty data event that forces proxies and the
// browser to start consuming the stream.
func writePrimer(w io.Writer) error {
	_, err := io.WriteString(w, "data: \n\n")
	return err
}

// writeFragments emits rendered HTML as a merge-fragments event, one
// data line per source line.
func writeFragments(w io.Writer, html string) error {
	return writeEvent(w, eventMergeFragments, html, "")
}

// writePrimedFragments emits rendered HTML with every data line carrying
// the "fragments " token, which is how the client is told to concatenate
// a multi-line fragment.
func writePrimedFragments(w io.Writer, html string) error {
	return writeEvent(w, eventMergeFragments, html, "fragments ")
}

// writeSignals emits a merge-signals event; body is the brace-wrapped
// signal payload, e.g. "{message: ''}".
func writeSignals(w io.Writer, body string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: signals %s\n\n", eventMergeSignals, body)
	return err
}

func writeEvent(w io.Writer, event, payload, linePrefix string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(strings.TrimRight(payload, "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(linePrefix)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// primedFragment frames a single-line fragment the way the set_name
// responses are delivered inline over plain HTTP.
func primedFragment(html string) string {
	return fmt.Sprintf("event: %s\ndata: fragments %s\n\n", eventMergeFragments, strings.TrimRight(html, "\n"))
}
