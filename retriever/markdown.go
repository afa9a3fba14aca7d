package retriever

import (
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// Page is the readable content of an HTML page without linked data.
type Page struct {
	Title    string `json:"title,omitempty"`
	Markdown string `json:"markdown"`
}

// noiseTags and noiseClasses are stripped when a page has no main content
// element.
var (
	noiseTags = map[string]bool{
		"nav": true, "header": true, "footer": true, "aside": true, "script": true, "style": true,
		"noscript": true, "iframe": true, "object": true, "embed": true, "form": true, "input": true, "button": true,
	}
	noiseClasses = map[string]bool{
		"nav": true, "navbar": true, "navigation": true, "sidebar": true, "menu": true, "toc": true,
		"table-of-contents": true, "footer": true, "header": true, "ad": true, "advertisement": true,
		"social": true, "share": true, "comments": true, "related": true, "breadcrumb": true,
	}
)

// markdownConverter renders pages as GitHub-flavoured markdown.
type markdownConverter struct {
	converter *md.Converter
}

func newMarkdownConverter() *markdownConverter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return &markdownConverter{converter: c}
}

// Convert extracts the article of a page with readability, falling back to
// the main/article element or the cleaned body, and renders it as markdown.
func (c *markdownConverter) Convert(content, pageURL string) (*Page, error) {
	var title, body string
	if u, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(content), u); err == nil && strings.TrimSpace(article.Content) != "" {
			title, body = article.Title, article.Content
		}
	}
	if body == "" {
		title, body = extractMainContent(content)
	}

	markdown, err := c.converter.ConvertString(body)
	if err != nil {
		return nil, err
	}
	markdown = cleanMarkdown(markdown)
	if title == "" {
		title = markdownTitle(markdown)
	}
	return &Page{Title: strings.TrimSpace(title), Markdown: markdown}, nil
}

// extractMainContent returns the page title and the markup of its main
// content: the first main, article or role=main element, otherwise the body
// with navigation and boilerplate removed.
func extractMainContent(content string) (string, string) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", content
	}
	var title string
	if t := findNode(doc, func(n *html.Node) bool { return n.Data == "title" }); t != nil && t.FirstChild != nil {
		title = strings.TrimSpace(t.FirstChild.Data)
	}

	main := findNode(doc, func(n *html.Node) bool {
		return n.Data == "main" || n.Data == "article" || attr(n, "role") == "main"
	})
	if main != nil {
		return title, render(main)
	}

	removeNodes(doc, func(n *html.Node) bool {
		if noiseTags[n.Data] {
			return true
		}
		for _, class := range strings.Fields(strings.ToLower(attr(n, "class"))) {
			if noiseClasses[class] {
				return true
			}
		}
		return false
	})
	if body := findNode(doc, func(n *html.Node) bool { return n.Data == "body" }); body != nil {
		return title, render(body)
	}
	return title, content
}

// findNode returns the first element, in document order, matching fn.
func findNode(n *html.Node, fn func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && fn(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, fn); found != nil {
			return found
		}
	}
	return nil
}

// removeNodes detaches every element matching fn together with its
// subtree.
func removeNodes(n *html.Node, fn func(*html.Node) bool) {
	var matched []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && fn(node) {
			matched = append(matched, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	for _, node := range matched {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func render(n *html.Node) string {
	var sb strings.Builder
	html.Render(&sb, n)
	return sb.String()
}

// cleanMarkdown collapses runs of blank lines and trims trailing spaces.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// markdownTitle returns the first level-one heading.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if t := strings.TrimSpace(line); strings.HasPrefix(t, "# ") {
			return strings.TrimSpace(t[2:])
		}
	}
	return ""
}
