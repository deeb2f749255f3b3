// Package prompt holds the system prompt applied to each assistant feature.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

var templates = map[usagedomain.Feature]*template.Template{
	usagedomain.FeatureChat: mustParse("chat",
		`You are Lukas, a concise assistant for small business owners. Answer in the user's language.`),
	usagedomain.FeatureDocumentQA: mustParse("document_qa",
		`You answer questions about a document. Only use facts from the document.
{{- with .title}}
Document title: {{.}}{{end}}
{{- with .content}}

Document:
{{.}}{{end}}`),
	usagedomain.FeatureDocumentAnalysis: mustParse("document_analysis",
		`You analyse business documents. Return key points, risks and action items as short bullet lists.
{{- with .title}}
Document title: {{.}}{{end}}`),
	usagedomain.FeatureMeetingSummary: mustParse("meeting_summary",
		`You summarise meeting transcripts. List decisions, owners and deadlines.
{{- with .meeting_title}}
Meeting: {{.}}{{end}}
{{- with .participants}}
Participants: {{.}}{{end}}`),
	usagedomain.FeatureWorkflow: mustParse("workflow",
		`You turn a task description into an ordered list of workflow steps with the tool to use for each.`),
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=zero").Parse(text))
}

// System renders the system prompt for feature with the caller supplied
// context values. Keys the template does not use are appended as a context
// block so nothing the caller sent is dropped.
func System(feature usagedomain.Feature, values map[string]string) (string, error) {
	tmpl, ok := templates[feature]
	if !ok {
		return "", fmt.Errorf("no prompt for feature %q", feature)
	}
	data := make(map[string]string, len(values))
	for k, v := range values {
		data[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}

	extra := unusedKeys(tmpl.Root.String(), data)
	if len(extra) > 0 {
		b.WriteString("\n\nContext:")
		for _, k := range extra {
			fmt.Fprintf(&b, "\n- %s: %s", k, data[k])
		}
	}
	return b.String(), nil
}

func unusedKeys(source string, data map[string]string) []string {
	var out []string
	for k, v := range data {
		if k == "" || v == "" || strings.Contains(source, "."+k) {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
