// Package prompt builds the agent's system instruction, injecting the
// current Doha date so the assistant never quotes a stale "today".
package prompt

import (
	"log"
	"os"
	"strings"

	"github.com/ezdanlabs/sara/internal/calendar"
)

const fallbackInstruction = `You are Sara, a real estate consultant at Ezdan Real Estate in Qatar.
Today's date is {display_date} ({iso_date}).

You help callers find apartments, villas and commercial properties, answer
questions about listings, and look up details by reference number. Use the
search_properties tool when the caller describes what they want, and the
get_property_details tool when they quote a reference number. Keep answers
short and conversational; quote prices in Qatari Riyal.`

// Builder renders the instruction template against the live date snapshot.
type Builder struct {
	template string
}

// NewBuilder loads the instruction template from path. A missing or
// unreadable file falls back to the built-in instruction so the service
// still starts.
func NewBuilder(path string) *Builder {
	if path == "" {
		return &Builder{template: fallbackInstruction}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system instruction %s unavailable, using built-in: %v", path, err)
		return &Builder{template: fallbackInstruction}
	}
	tmpl := strings.TrimSpace(string(data))
	if tmpl == "" {
		log.Printf("system instruction %s is empty, using built-in", path)
		return &Builder{template: fallbackInstruction}
	}
	return &Builder{template: tmpl}
}

// Build substitutes the date tokens and returns the final instruction.
func (b *Builder) Build(today calendar.Snapshot) string {
	out := strings.ReplaceAll(b.template, "{display_date}", today.DisplayDate)
	return strings.ReplaceAll(out, "{iso_date}", today.ISODate)
}
