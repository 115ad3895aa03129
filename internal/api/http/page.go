package http

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/GriffinCanCode/monview/internal/domain/view"
	"github.com/microcosm-cc/bluemonday"
)

// Page renders the viewer's HTML document. The initial markup is rendered
// server side; the embedded script keeps it current from /stream.
type Page struct {
	tmpl   *template.Template
	policy *bluemonday.Policy
}

type pageEntry struct {
	Address  string
	Label    template.HTML
	Selected bool
}

type pageScreen struct {
	Index    int
	State    string
	Width    string
	FrameURL string
	Caption  string
}

type pageData struct {
	Entries []pageEntry
	Title   template.HTML
	Active  bool
	Screens []pageScreen
	Mode    string
}

// NewPage parses the page template
func NewPage() *Page {
	return &Page{
		tmpl:   template.Must(template.New("viewer").Parse(pageTemplate)),
		policy: bluemonday.StrictPolicy(),
	}
}

// Render produces the page for v. Monitor names come from remote hosts and
// are stripped of markup.
func (p *Page) Render(v view.View) ([]byte, error) {
	data := pageData{
		Entries: make([]pageEntry, 0, len(v.Entries)),
		Screens: make([]pageScreen, 0, len(v.Screens)),
		Mode:    v.Mode,
	}
	for _, e := range v.Entries {
		data.Entries = append(data.Entries, pageEntry{
			Address:  e.Address,
			Label:    template.HTML(p.policy.Sanitize(e.Label)),
			Selected: e.Selected,
		})
	}
	if v.Header != nil {
		data.Active = v.Header.ShowStop
		data.Title = template.HTML(p.policy.Sanitize(v.Header.Title))
	}
	for _, s := range v.Screens {
		caption := fmt.Sprintf("Screen %d · %s", s.Index, s.State)
		if s.Width > 0 {
			caption = fmt.Sprintf("%s · %dx%d", caption, s.Width, s.Height)
		}
		data.Screens = append(data.Screens, pageScreen{
			Index:    s.Index,
			State:    string(s.State),
			Width:    fmt.Sprintf("%.2f%%", s.TileWidth),
			FrameURL: s.FrameURL,
			Caption:  caption,
		})
	}

	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Monitor Viewer</title>
<style>
body { margin: 0; display: flex; font-family: sans-serif; background: #1b1d21; color: #e6e6e6; }
aside { width: 18rem; padding: 1rem; border-right: 1px solid #333; }
aside ul { list-style: none; padding: 0; }
button.monitor { width: 100%; text-align: left; margin: 2px 0; padding: .4rem; background: #2a2d33; color: inherit; border: 0; cursor: pointer; }
button.monitor.selected { background: #3b6ea5; }
main { flex: 1; padding: 1rem; }
#screens { display: flex; flex-wrap: wrap; gap: .5rem; }
figure.screen { margin: 0; }
figure.screen img { width: 100%; display: block; }
</style>
</head>
<body data-mode="{{.Mode}}">
<aside>
<h2>Monitors</h2>
<ul id="monitors">
{{- range .Entries}}
<li><button class="monitor{{if .Selected}} selected{{end}}" data-address="{{.Address}}">{{.Label}}</button></li>
{{- else}}
<li class="empty">No monitors available</li>
{{- end}}
</ul>
</aside>
<main>
<header id="session"{{if not .Active}} hidden{{end}}>
<h1 id="title">{{.Title}}</h1>
<button id="stop">Stop viewing</button>
</header>
<section id="screens">
{{- range .Screens}}
<figure class="screen" data-index="{{.Index}}" data-state="{{.State}}" style="width: {{.Width}}">
{{- if .FrameURL}}<img src="{{.FrameURL}}" alt="Screen {{.Index}}">{{end}}
<figcaption>{{.Caption}}</figcaption>
</figure>
{{- end}}
</section>
</main>
<script>
(function () {
  var ws;
  function send(msg) { if (ws && ws.readyState === 1) ws.send(JSON.stringify(msg)); }
  function el(tag, cls, text) {
    var e = document.createElement(tag);
    if (cls) e.className = cls;
    if (text !== undefined) e.textContent = text;
    return e;
  }
  function render(v) {
    var list = document.getElementById("monitors");
    list.replaceChildren();
    (v.entries || []).forEach(function (m) {
      var b = el("button", "monitor" + (m.selected ? " selected" : ""), m.label);
      b.dataset.address = m.address;
      var li = el("li");
      li.appendChild(b);
      list.appendChild(li);
    });
    if (!v.entries || v.entries.length === 0) list.appendChild(el("li", "empty", "No monitors available"));
    var header = document.getElementById("session");
    header.hidden = !(v.header && v.header.show_stop);
    document.getElementById("title").textContent = v.header ? v.header.title : "";
    var screens = document.getElementById("screens");
    screens.replaceChildren();
    (v.screens || []).forEach(function (s) {
      var fig = el("figure", "screen");
      fig.dataset.index = s.index;
      fig.dataset.state = s.state;
      fig.style.width = s.tile_width + "%";
      if (s.frame_url) {
        var img = el("img");
        img.src = s.frame_url;
        img.alt = "Screen " + s.index;
        fig.appendChild(img);
      }
      var caption = "Screen " + s.index + " · " + s.state;
      if (s.width > 0) caption += " · " + s.width + "x" + s.height;
      fig.appendChild(el("figcaption", "", caption));
      screens.appendChild(fig);
    });
  }
  document.getElementById("monitors").addEventListener("click", function (e) {
    var addr = e.target.dataset && e.target.dataset.address;
    if (addr) send({type: "select", address: addr});
  });
  document.getElementById("stop").addEventListener("click", function () { send({type: "clear"}); });
  function connect() {
    ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/stream");
    ws.onmessage = function (e) {
      var msg = JSON.parse(e.data);
      if (msg.type === "view") render(msg.view);
    };
    ws.onclose = function () { setTimeout(connect, 2000); };
  }
  connect();
})();
</script>
</body>
</html>
`
