package vdom

// Literal is an in-memory Source. It is how code and tests describe a
// document without going through a markup parser.
type Literal struct {
	tag      string
	text     string
	isText   bool
	attrs    []Attribute
	children []Source
	err      error
}

// Element returns a Literal element. Attributes are given as alternating
// name/value strings.
//
//	vdom.Element("p", []string{"id", "x", "class", "a"}, vdom.Text("hi"))
func Element(tag string, attrs []string, children ...Source) *Literal {
	l := &Literal{tag: tag, children: children}
	for i := 0; i+1 < len(attrs); i += 2 {
		l.attrs = append(l.attrs, Attribute{Key: attrs[i], Value: attrs[i+1]})
	}
	return l
}

// Text returns a Literal text run.
func Text(s string) *Literal {
	return &Literal{text: s, isText: true}
}

// Broken returns a Literal element whose children cannot be enumerated.
// Builders drop it with a BuildError.
func Broken(tag string, err error) *Literal {
	return &Literal{tag: tag, err: err}
}

func (l *Literal) Tag() (string, bool) {
	if l.isText || l.tag == "" {
		return "", false
	}
	return l.tag, true
}

func (l *Literal) Text() (string, bool) {
	return l.text, l.isText
}

func (l *Literal) Attributes() []Attribute {
	return l.attrs
}

func (l *Literal) Children() ([]Source, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.children, nil
}

// MustBuild builds src with a default Builder and panics on failure.
// Intended for tests and static documents.
func MustBuild(src Source) *Tree {
	t, err := NewBuilder().Build(src)
	if err != nil {
		panic(err)
	}
	return t
}
