// internal/service/template_service.go
package service

import (
	"fmt"

	"github.com/osteele/liquid"
)

// TemplateService renders Liquid placeholders such as {{ name }} in
// newsletter subjects and bodies.
type TemplateService struct {
	engine *liquid.Engine
}

func NewTemplateService() *TemplateService {
	return &TemplateService{engine: liquid.NewEngine()}
}

// RenderTemplate renders src with data. On failure the source is returned
// unchanged together with the error.
func (ts *TemplateService) RenderTemplate(src string, data map[string]any) (string, error) {
	out, err := ts.engine.ParseAndRenderString(src, data)
	if err != nil {
		return src, fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// subscriberBindings exposes name and email, plus any extra subscriber
// fields that are plain strings.
func subscriberBindings(email, name string, extra map[string]string) map[string]any {
	data := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		data[k] = v
	}
	data["email"] = email
	data["name"] = name
	return data
}
