package render

import (
	"bytes"
	"encoding/json"
	"html/template"
)

const (
	panelID     = "onboardly-panel"
	spotlightID = "onboardly-spotlight"
	resetID     = "onboardly-reset"
	styleID     = "onboardly-style"

	bindNext  = "__onboardlyNext"
	bindPrev  = "__onboardlyPrev"
	bindSkip  = "__onboardlySkip"
	bindReset = "__onboardlyReset"
)

const stylesheet = `
#onboardly-spotlight{position:fixed;z-index:2147483000;border-radius:6px;pointer-events:none;box-shadow:0 0 0 9999px rgba(15,23,42,.55);transition:all .2s ease}
#onboardly-panel{position:fixed;z-index:2147483001;max-width:360px;min-width:240px;background:#fff;color:#0f172a;border-radius:8px;padding:16px;box-shadow:0 10px 30px rgba(0,0,0,.25);font:14px/1.45 system-ui,sans-serif}
#onboardly-panel h3{margin:0 24px 8px 0;font-size:16px}
#onboardly-panel .ob-close{position:absolute;top:8px;right:10px;border:0;background:none;font-size:18px;cursor:pointer}
#onboardly-panel .ob-progress{margin-bottom:8px;font-size:12px;color:#475569}
#onboardly-panel .ob-bar{height:4px;background:#e2e8f0;border-radius:2px;margin-top:4px}
#onboardly-panel .ob-bar span{display:block;height:100%;background:#6366f1;border-radius:2px}
#onboardly-panel .ob-actions{display:flex;gap:8px;justify-content:flex-end;margin-top:12px}
#onboardly-panel button[disabled]{opacity:.4;cursor:default}
#onboardly-panel .ob-arrow{position:absolute;width:12px;height:12px;background:#fff;transform:rotate(45deg)}
#onboardly-panel.ob-top .ob-arrow{bottom:-6px;left:calc(50% - 6px)}
#onboardly-panel.ob-bottom .ob-arrow{top:-6px;left:calc(50% - 6px)}
#onboardly-panel.ob-left .ob-arrow{right:-6px;top:calc(50% - 6px)}
#onboardly-panel.ob-right .ob-arrow{left:-6px;top:calc(50% - 6px)}
#onboardly-reset{position:fixed;right:16px;bottom:16px;z-index:2147483001}
#onboardly-reset button{padding:6px 12px;border-radius:16px;border:1px solid #cbd5e1;background:#fff;cursor:pointer;font:12px system-ui,sans-serif}
`

const resetMarkup = `<button onclick="window.` + bindReset + `('')">Restart tour</button>`

var panelTemplate = template.Must(template.New("panel").Parse(`
{{- if .Arrow}}<div class="ob-arrow"></div>{{end -}}
{{- if .AllowSkip}}<button class="ob-close" aria-label="Close" onclick="window.__onboardlySkip({{.Token}})">&times;</button>{{end -}}
{{- if .ShowProgress}}<div class="ob-progress">Step {{.Step}} of {{.Total}}<div class="ob-bar"><span style="width: {{.Percent}}%"></span></div></div>{{end -}}
<h3>{{.Title}}</h3>
<div class="ob-body">{{.Body}}</div>
<div class="ob-actions">
{{- if .AllowSkip}}<button class="ob-skip" onclick="window.__onboardlySkip({{.Token}})">{{.SkipLabel}}</button>{{end -}}
<button class="ob-prev" {{if .First}}disabled{{end}} onclick="window.__onboardlyPrev({{.Token}})">Back</button>
<button class="ob-next" onclick="window.__onboardlyNext({{.Token}})">{{.NextLabel}}</button>
</div>`))

type panelView struct {
	Title        template.HTML
	Body         template.HTML
	Token        string
	Step         int
	Total        int
	Percent      int
	ShowProgress bool
	AllowSkip    bool
	First        bool
	Arrow        bool
	NextLabel    string
	SkipLabel    string
}

func renderPanel(c Content, s *Sanitizer, token string, arrow bool) (string, error) {
	// Sanitizer output is safe HTML.
	v := panelView{
		Title:        template.HTML(s.Title(c.Title)),
		Body:         template.HTML(s.Body(c.Body)),
		Token:        token,
		Step:         c.Index + 1,
		Total:        c.Total,
		Percent:      c.Percent(),
		ShowProgress: c.ShowProgress,
		AllowSkip:    c.AllowSkip,
		First:        c.First(),
		Arrow:        arrow,
		NextLabel:    c.NextLabel(),
		SkipLabel:    c.SkipLabel(),
	}
	var buf bytes.Buffer
	if err := panelTemplate.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// mountScript creates (or reuses) the element with id, replaces its markup
// and class, and applies style. The shared stylesheet is installed once.
func mountScript(id, tag, class, html, style string) string {
	return `(() => {
  if (!document.getElementById(` + jsString(styleID) + `)) {
    const st = document.createElement("style");
    st.id = ` + jsString(styleID) + `;
    st.textContent = ` + jsString(stylesheet) + `;
    document.head.appendChild(st);
  }
  let el = document.getElementById(` + jsString(id) + `);
  if (!el) {
    el = document.createElement(` + jsString(tag) + `);
    el.id = ` + jsString(id) + `;
    document.body.appendChild(el);
  }
  el.className = ` + jsString(class) + `;
  el.innerHTML = ` + jsString(html) + `;
  el.style.cssText = ` + jsString(style) + `;
  return true;
})()`
}

func removeScript(id string) string {
	return `(() => { const el = document.getElementById(` + jsString(id) + `); if (el) el.remove(); return true; })()`
}
