package server

import "html/template"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="stylesheet" href="/assets/client.css">
</head>
<body>
<div class="lk-bar"><span>{{.Title}}</span><span>{{.Store}}</span></div>
<main class="lk-index">
{{- if .Documents}}
<table>
<thead><tr><th>Name</th><th>Template</th><th>Updated</th><th></th></tr></thead>
<tbody>
{{- range .Documents}}
<tr>
<td><a href="/d/{{.ID}}">{{if .Name}}{{.Name}}{{else}}{{.ID}}{{end}}</a></td>
<td>{{.Template}}</td>
<td>{{.UpdatedAt.Format "2006-01-02 15:04"}}</td>
<td>{{if .Editable}}<a href="/d/{{.ID}}/edit">edit</a>{{end}}</td>
</tr>
{{- end}}
</tbody>
</table>
{{- else}}
<p>No documents yet.</p>
{{- end}}
</main>
</body>
</html>
`))

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="stylesheet" href="/assets/client.css">
</head>
<body>
<div class="lk-bar">
<span><a href="/">&larr;</a> {{.Title}}{{if .Template}} &middot; {{.Template}}{{end}}</span>
<span>
<span id="lk-status" class="lk-status">connecting</span>
{{- if .Editing}}<a href="/d/{{.DocID}}">preview</a>{{else if .EditingEnabled}}<a href="/d/{{.DocID}}/edit">edit</a>{{end}}
</span>
</div>
<div id="lk-root" data-lk-doc="{{.DocID}}" data-lk-editing="{{.Editing}}">{{.Body}}</div>
<ul id="lk-problems">
{{- range .Problems}}
<li class="lk-problem lk-problem-{{.Severity}}">{{if .Path}}{{.Path}}: {{end}}{{.Message}}</li>
{{- end}}
</ul>
<script src="/assets/client.js"></script>
</body>
</html>
`))
