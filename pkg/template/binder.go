package template

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateNotFound means the caller asked for a template id that was
// never registered. Templates are static and registered at startup, so
// this is a programmer error upstream, not a runtime condition.
var ErrTemplateNotFound = errors.New("template not found")

// Rendered is the output of binding a template.
type Rendered struct {
	Title   string
	Message string
}

// Bind resolves a template and substitutes {{key}} placeholders for every
// key present in variables. Keys the template declares but the caller did
// not supply stay as literal {{key}} text; failing a delivery over a
// missing optional field is worse than an ugly message.
//
// No escaping is performed here; channel senders own output-context
// encoding.
func (r *Registry) Bind(id string, variables map[string]string) (Rendered, error) {
	t, ok := r.Get(id)
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	title := t.Title
	message := t.Message
	for key, value := range variables {
		placeholder := "{{" + key + "}}"
		title = strings.ReplaceAll(title, placeholder, value)
		message = strings.ReplaceAll(message, placeholder, value)
	}

	return Rendered{Title: title, Message: message}, nil
}
