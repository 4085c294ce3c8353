package page

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

// Form describes a <form> of the current document.
type Form struct {
	Node   vdom.NodeID
	Action string // raw action attribute; empty submits to the page itself
	Method string // "GET" or "POST"
	Fields []Field
}

// Field is a named input of a form. Submit buttons are not fields.
type Field struct {
	Node        vdom.NodeID
	Name        string
	Type        string
	Value       string // initial value from the document
	Placeholder string
}

// Submission returns a submission of f with its initial values overridden
// by values. Names in values that the form does not declare are ignored.
func (f Form) Submission(values map[string]string) FormSubmission {
	v := make(url.Values, len(f.Fields))
	for _, field := range f.Fields {
		val, ok := values[field.Name]
		if !ok {
			val = field.Value
		}
		v.Add(field.Name, val)
	}
	return FormSubmission{Action: f.Action, Method: f.Method, Values: v}
}

// FormSubmission is a filled-in form ready to send.
type FormSubmission struct {
	Action string
	Method string
	Values url.Values
}

// Forms returns the forms of the current document in document order.
func (c *Controller[H]) Forms() []Form {
	return CollectForms(c.Tree())
}

// FormOf returns the form that contains node id, if any.
func (c *Controller[H]) FormOf(id vdom.NodeID) (Form, bool) {
	t := c.Tree()
	for n, ok := t.Node(id); ok; n, ok = t.Node(n.Parent) {
		if n.Tag == "form" {
			return collectForm(t, n), true
		}
	}
	return Form{}, false
}

// Submit sends a form and reconciles the target with the response, which
// becomes the current document.
func (c *Controller[H]) Submit(ctx context.Context, sub FormSubmission) ([]vdom.Patch, error) {
	doc, err := c.Send(ctx, sub)
	if err != nil {
		return nil, err
	}
	return c.Render(ctx, doc, false)
}

// Send sends a form without touching the target. The action is resolved
// against the current document; an empty action submits to the document
// itself.
func (c *Controller[H]) Send(ctx context.Context, sub FormSubmission) (*source.Document, error) {
	base := c.URL()
	action := base
	if strings.TrimSpace(sub.Action) != "" {
		u, err := source.Resolve(base, sub.Action)
		if err != nil && !errors.Is(err, source.ErrFragmentLink) {
			return nil, err
		}
		if u != nil {
			action = u
		}
	}
	if action == nil {
		return nil, ErrNoDocument
	}

	s, ok := c.loader.(source.Submitter)
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrNotSubmittable, action.Redacted())
	}
	method := strings.ToUpper(cmp.Or(sub.Method, "GET"))
	c.logger.Debug("submitting form", "action", action.Redacted(), "method", method, "fields", len(sub.Values))

	doc, err := s.Submit(ctx, action, method, sub.Values)
	c.metrics.RecordLoad(action.Scheme, err)
	if err != nil {
		return nil, fmt.Errorf("page: submit %s: %w", action.Redacted(), err)
	}
	return doc, nil
}

// CollectForms returns the forms of t in document order. Nested forms are
// not valid markup; an inner form's fields count toward the outer one.
func CollectForms(t *vdom.Tree) []Form {
	if t.Len() == 0 {
		return nil
	}
	var forms []Form
	t.Walk(t.Root(), func(n vdom.Node) bool {
		if n.Tag != "form" {
			return true
		}
		forms = append(forms, collectForm(t, n))
		return false
	})
	return forms
}

func collectForm(t *vdom.Tree, form vdom.Node) Form {
	f := Form{
		Node:   form.ID,
		Action: form.Attrs["action"],
		Method: strings.ToUpper(cmp.Or(form.Attrs["method"], "get")),
	}
	t.Walk(form.ID, func(n vdom.Node) bool {
		if field, ok := fieldOf(t, n); ok {
			f.Fields = append(f.Fields, field)
		}
		return true
	})
	return f
}

func fieldOf(t *vdom.Tree, n vdom.Node) (Field, bool) {
	name := n.Attrs["name"]
	if name == "" {
		return Field{}, false
	}
	field := Field{Node: n.ID, Name: name, Placeholder: n.Attrs["placeholder"]}
	switch n.Tag {
	case "input":
		field.Type = strings.ToLower(cmp.Or(n.Attrs["type"], "text"))
		switch field.Type {
		case "submit", "button", "reset", "image":
			return Field{}, false
		case "checkbox", "radio":
			if _, checked := n.Attrs["checked"]; !checked {
				return Field{}, false
			}
			field.Value = cmp.Or(n.Attrs["value"], "on")
			return field, true
		}
		field.Value = n.Attrs["value"]
	case "textarea":
		field.Type = "textarea"
		field.Value = t.Text(n.ID)
	default:
		return Field{}, false
	}
	return field, true
}
