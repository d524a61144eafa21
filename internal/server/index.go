package server

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
)

var indexTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"cost": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return strconv.FormatFloat(*v, 'g', 6, 64)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>facefit jobs</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.failed { color: #b00; }
</style>
</head>
<body>
<h1>Jobs</h1>
{{if .}}
<table>
<tr><th>ID</th><th>State</th><th>Method</th><th>Target</th><th>Loop</th><th>Cost</th><th>Initial</th><th>Images</th></tr>
{{range .}}
<tr>
<td><a href="/api/v1/jobs/{{.ID}}/status">{{.ID}}</a></td>
<td class="{{.State}}">{{.State}}{{if .Error}}: {{.Error}}{{end}}</td>
<td>{{.Config.Method}}</td>
<td>{{.Config.TargetPath}}</td>
<td>{{.Loop}}</td>
<td>{{cost .Cost}}</td>
<td>{{cost .InitialCost}}</td>
<td>{{if .Params}}<a href="/api/v1/jobs/{{.ID}}/best.png">best</a> <a href="/api/v1/jobs/{{.ID}}/diff.png">diff</a>{{end}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No jobs yet. Submit one with POST /api/v1/jobs.</p>
{{end}}
</body>
</html>
`))

// handleIndex lists all jobs as HTML
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, s.jobManager.ListJobs()); err != nil {
		slog.Error("Failed to render index", "error", err)
	}
}
