package dom

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
	"golang.org/x/net/html"
)

var (
	minifier     *minify.M
	minifierOnce sync.Once
)

// getMinifier returns the shared HTML minifier.
func getMinifier() *minify.M {
	minifierOnce.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &minhtml.Minifier{
			KeepEndTags:      true,
			KeepDocumentTags: true,
			KeepQuotes:       true,
			KeepComments:     true,
		})
	})
	return minifier
}

// Render serializes nodes in order.
func Render(nodes ...*html.Node) (string, error) {
	var sb strings.Builder
	for _, n := range nodes {
		if err := html.Render(&sb, n); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// RenderChildren serializes the children of an element or virtual element.
func RenderChildren(n *html.Node) (string, error) {
	return Render(ChildNodes(n)...)
}

// RenderMinified serializes nodes and strips insignificant whitespace. If
// minification fails the plain rendering is returned.
func RenderMinified(nodes ...*html.Node) (string, error) {
	out, err := Render(nodes...)
	if err != nil {
		return "", err
	}
	minified, err := getMinifier().String("text/html", out)
	if err != nil {
		return out, nil
	}
	return minified, nil
}
