package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"courier/internal/types"
)

// templateFuncs are available in every title and body template.
var templateFuncs = map[string]any{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"default": func(def, v any) any {
		if v == nil || v == "" {
			return def
		}
		return v
	},
}

// Renderer substitutes placeholders in a Template with values from the
// stored notification payload. Placeholders use Go template syntax
// ({{.order_id}}). A placeholder with no matching field is a render error.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render decodes payload (the JSON stored on the notification) and
// executes both templates against it. HTML bodies are escaped
// contextually; titles and other formats are plain text.
func (r *Renderer) Render(t *types.Template, payload []byte) (subject, body string, err error) {
	data, err := decodePayload(payload)
	if err != nil {
		return "", "", types.NewAppError(types.ErrCodeTemplateRender, "payload is not valid JSON", err)
	}

	subject, err = execText("title", t.TitleTemplate, data)
	if err != nil {
		return "", "", renderErr(t, "title", err)
	}

	if t.Format == types.FormatHTML {
		body, err = execHTML(t.BodyTemplate, data)
	} else {
		body, err = execText("body", t.BodyTemplate, data)
	}
	if err != nil {
		return "", "", renderErr(t, "body", err)
	}
	return subject, body, nil
}

func decodePayload(payload []byte) (any, error) {
	if len(payload) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	// Keep numbers in their original textual form (no 1e+06).
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func execText(name, src string, data any) (string, error) {
	tmpl, err := texttemplate.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func execHTML(src string, data any) (string, error) {
	tmpl, err := htmltemplate.New("body").Funcs(templateFuncs).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderErr(t *types.Template, part string, err error) error {
	return types.NewAppErrorWithDetails(types.ErrCodeTemplateRender,
		fmt.Sprintf("failed to render %s of template %s", part, t.ID), err,
		map[string]any{"template_id": t.ID, "type_id": t.TypeID, "format": string(t.Format)})
}
