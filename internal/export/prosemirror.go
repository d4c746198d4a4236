package export

import (
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strings"
)

// RenderContent converts a stored ProseMirror document to HTML. Invalid or
// empty JSON renders as nothing.
func RenderContent(raw json.RawMessage) template.HTML {
	if len(raw) == 0 {
		return ""
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return template.HTML(ProseMirrorToHTML(doc))
}

// ProseMirrorToHTML converts decoded ProseMirror JSON to HTML
func ProseMirrorToHTML(doc interface{}) string {
	root, ok := doc.(map[string]interface{})
	if !ok {
		return ""
	}
	return renderNode(root)
}

func attr(node map[string]interface{}, key string) interface{} {
	attrs, ok := node["attrs"].(map[string]interface{})
	if !ok {
		return nil
	}
	return attrs[key]
}

func renderNode(node map[string]interface{}) string {
	nodeType, _ := node["type"].(string)
	if nodeType == "" {
		return ""
	}

	switch nodeType {
	case "doc":
		return renderContent(node["content"])
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>\n", renderContent(node["content"]))
	case "heading":
		level := 1
		if lvl, ok := attr(node, "level").(float64); ok && lvl >= 1 && lvl <= 6 {
			level = int(lvl)
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, renderContent(node["content"]), level)
	case "bulletList":
		return fmt.Sprintf("<ul>\n%s</ul>\n", renderContent(node["content"]))
	case "orderedList":
		return fmt.Sprintf("<ol>\n%s</ol>\n", renderContent(node["content"]))
	case "listItem":
		return fmt.Sprintf("<li>%s</li>\n", renderContent(node["content"]))
	case "blockquote":
		return fmt.Sprintf("<blockquote>\n%s</blockquote>\n", renderContent(node["content"]))
	case "codeBlock":
		// text children are escaped already; marks make no sense in code
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", plainText(node["content"]))
	case "text":
		text, _ := node["text"].(string)
		marks, _ := node["marks"].([]interface{})
		return renderTextWithMarks(text, marks)
	case "image":
		src, _ := attr(node, "src").(string)
		if !safeURL(src) {
			return ""
		}
		alt, _ := attr(node, "alt").(string)
		return fmt.Sprintf(`<img src="%s" alt="%s">`+"\n", html.EscapeString(src), html.EscapeString(alt))
	case "hardBreak":
		return "<br>"
	case "table":
		return fmt.Sprintf("<table>\n%s</table>\n", renderContent(node["content"]))
	case "tableRow":
		return fmt.Sprintf("<tr>\n%s</tr>\n", renderContent(node["content"]))
	case "tableCell":
		return fmt.Sprintf("<td>%s</td>\n", renderContent(node["content"]))
	case "tableHeader":
		return fmt.Sprintf("<th>%s</th>\n", renderContent(node["content"]))
	case "horizontalRule":
		return "<hr>\n"
	default:
		return renderContent(node["content"])
	}
}

func renderContent(content interface{}) string {
	items, ok := content.([]interface{})
	if !ok {
		return ""
	}

	var result strings.Builder
	for _, item := range items {
		if node, ok := item.(map[string]interface{}); ok {
			result.WriteString(renderNode(node))
		}
	}
	return result.String()
}

func plainText(content interface{}) string {
	items, ok := content.([]interface{})
	if !ok {
		return ""
	}
	var result strings.Builder
	for _, item := range items {
		node, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if text, ok := node["text"].(string); ok {
			result.WriteString(html.EscapeString(text))
		}
	}
	return result.String()
}

// safeURL accepts relative links and http, https, mailto and tel schemes.
func safeURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto", "tel":
		return true
	default:
		return false
	}
}

func renderTextWithMarks(text string, marks []interface{}) string {
	if text == "" {
		return ""
	}

	htmlText := html.EscapeString(text)

	// Apply marks from outside in
	for i := len(marks) - 1; i >= 0; i-- {
		mark, ok := marks[i].(map[string]interface{})
		if !ok {
			continue
		}
		markType, _ := mark["type"].(string)

		switch markType {
		case "bold":
			htmlText = fmt.Sprintf("<strong>%s</strong>", htmlText)
		case "italic":
			htmlText = fmt.Sprintf("<em>%s</em>", htmlText)
		case "code":
			htmlText = fmt.Sprintf("<code>%s</code>", htmlText)
		case "link":
			href, _ := attr(mark, "href").(string)
			if !safeURL(href) {
				continue
			}
			htmlText = fmt.Sprintf(`<a href="%s" rel="noopener">%s</a>`, html.EscapeString(href), htmlText)
		case "strike":
			htmlText = fmt.Sprintf("<s>%s</s>", htmlText)
		case "underline":
			htmlText = fmt.Sprintf("<u>%s</u>", htmlText)
		}
	}

	return htmlText
}
