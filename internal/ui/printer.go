package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/swartninja/provisioner/internal/discovery"
	"github.com/swartninja/provisioner/internal/portal"
)

// Printer writes UI components to a writer. Commands use it for output
// that does not need a step list.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a Printer. If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Width returns the render width
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header followed by a blank line
func (p *Printer) PrintHeader(title, command string, params ...KV) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success box
func (p *Printer) PrintSuccess(title string, details ...KV) {
	p.Newline()
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintFailure prints a failure box with troubleshooting tips
func (p *Printer) PrintFailure(title string, err error, troubleshooting []string) {
	p.Newline()
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintWarning prints a warning box
func (p *Printer) PrintWarning(title string, details ...KV) {
	p.Newline()
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// PrintPortals prints a table of discovered portals
func (p *Printer) PrintPortals(portals []*discovery.Portal) {
	p.Println(RenderPortals(portals, p.width))
}

// PrintInfo prints a portal's /info document
func (p *Printer) PrintInfo(info *portal.Info) {
	p.Println(RenderInfo(info, p.width))
}

// PrintMessage prints one streamed portal event
func (p *Printer) PrintMessage(msg portal.Message) {
	p.Println(RenderMessage(msg))
}
