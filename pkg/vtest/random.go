package vtest

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/prowser-dev/prowser/pkg/vdom"
)

var (
	randomTags    = []string{"div", "p", "span", "ul", "li", "a"}
	randomClasses = []string{"a", "b", "c"}
	randomKeys    = []string{"", "", "", "x", "y"}
)

// RandomConfig bounds the shape of generated documents.
type RandomConfig struct {
	MaxDepth    int
	MaxChildren int
}

// DefaultRandomConfig produces documents of a few dozen nodes.
var DefaultRandomConfig = RandomConfig{MaxDepth: 4, MaxChildren: 4}

// RandomDocument returns a deterministic document for seed. The vocabulary is
// small so documents built from different seeds overlap in structure.
func RandomDocument(seed uint64, cfg RandomConfig) vdom.Source {
	f := gofakeit.New(seed)
	return randomElement(f, cfg, 0)
}

// RandomTree builds RandomDocument(seed, DefaultRandomConfig).
func RandomTree(seed uint64) *vdom.Tree {
	return vdom.MustBuild(RandomDocument(seed, DefaultRandomConfig))
}

func randomElement(f *gofakeit.Faker, cfg RandomConfig, depth int) *vdom.Literal {
	tag := f.RandomString(randomTags)
	var attrs []string
	if key := f.RandomString(randomKeys); key != "" {
		attrs = append(attrs, vdom.KeyAttr, key)
	}
	if f.Bool() {
		attrs = append(attrs, "class", f.RandomString(randomClasses))
	}
	if tag == "a" {
		attrs = append(attrs, "href", fmt.Sprintf("/%s", f.RandomString(randomClasses)))
	}

	var children []vdom.Source
	if depth < cfg.MaxDepth {
		for range f.Number(0, cfg.MaxChildren) {
			if f.Number(0, 3) == 0 {
				children = append(children, vdom.Text(f.RandomString(randomClasses)))
				continue
			}
			children = append(children, randomElement(f, cfg, depth+1))
		}
	}
	return vdom.Element(tag, attrs, children...)
}
