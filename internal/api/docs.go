package api

import (
	"bytes"
	"html/template"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"
)

var docsTemplate = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>{{.Title}} {{.Version}}</title>
  <style>body{font-family:sans-serif;margin:2em}td{padding:2px 12px}code{font-size:13px}</style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <p>Version {{.Version}}. Machine-readable description at <a href="/openapi.json">/openapi.json</a>.
  {{if .Events}}Live events stream from <a href="/api/v1/events">/api/v1/events</a> (filter with <code>?feeds=</code>).{{end}}</p>
  <table>
  {{range .Ops}}<tr><td><code>{{.Method}}</code></td><td><code>{{.Path}}</code></td><td>{{.Summary}}</td></tr>
  {{end}}</table>
</body>
</html>`))

type docsOp struct {
	Method  string
	Path    string
	Summary string
}

// renderDocs lists the registered operations from the OpenAPI description.
func renderDocs(oapi *huma.OpenAPI, events bool) ([]byte, error) {
	data := struct {
		Title   string
		Version string
		Events  bool
		Ops     []docsOp
	}{Events: events}
	if oapi.Info != nil {
		data.Title, data.Version = oapi.Info.Title, oapi.Info.Version
	}

	for path, item := range oapi.Paths {
		for _, op := range []struct {
			method string
			op     *huma.Operation
		}{
			{http.MethodGet, item.Get},
			{http.MethodPost, item.Post},
			{http.MethodPut, item.Put},
			{http.MethodDelete, item.Delete},
		} {
			if op.op != nil {
				data.Ops = append(data.Ops, docsOp{Method: op.method, Path: path, Summary: op.op.Summary})
			}
		}
	}
	sort.Slice(data.Ops, func(i, j int) bool {
		if data.Ops[i].Path != data.Ops[j].Path {
			return data.Ops[i].Path < data.Ops[j].Path
		}
		return data.Ops[i].Method < data.Ops[j].Method
	})

	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
