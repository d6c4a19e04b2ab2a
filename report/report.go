// Package report writes the HTML match report: one page per query
// video, embedding the query and each matching candidate so a human
// can eyeball the result without opening a player separately.
package report

import (
	"html/template"
	"os"
	"path/filepath"

	"github.com/kestrelav/simdup/errs"
	"github.com/kestrelav/simdup/video"
	"github.com/kestrelav/simdup/videoquery"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.QueryID}} matches</title></head>
<body>
<h1>{{.QueryID}}</h1>
<section>
<video src="{{.QueryPath}}" controls width="480"></video>
</section>
<h2>Matches</h2>
{{if not .Matches}}<p>No matches above threshold.</p>{{end}}
<ul>
{{range .Matches}}
<li>
<p>{{.VideoID}} &mdash; score {{printf "%.2f" .Score}}, run length {{.RunLength}}</p>
<video src="{{.VideoID}}" controls width="480"></video>
</li>
{{end}}
</ul>
</body>
</html>
`

var tmpl = template.Must(template.New("report").Parse(pageTemplate))

type pageData struct {
	QueryID   string
	QueryPath string
	Matches   []videoquery.Match
}

// Write renders one report page per entry in candidates into dir,
// named "<base name of the video's id>.html" — c.ID is typically the
// video's full filesystem path, so the report name is derived from
// filepath.Base(c.ID) rather than joined raw, which would otherwise
// try to create a report under c.ID's own directory structure. matches
// maps a query video's ID to its sorted match list.
func Write(dir string, candidates []video.Candidate, matches map[string][]videoquery.Match) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.New(errs.BadArgument, "report.Write", err)
	}

	for _, c := range candidates {
		data := pageData{
			QueryID:   c.ID,
			QueryPath: c.ID,
			Matches:   matches[c.ID],
		}

		path := filepath.Join(dir, filepath.Base(c.ID)+".html")
		f, err := os.Create(path)
		if err != nil {
			return errs.New(errs.BadArgument, "report.Write", err)
		}

		err = tmpl.Execute(f, data)
		closeErr := f.Close()
		if err != nil {
			return errs.New(errs.BadArgument, "report.Write", err)
		}
		if closeErr != nil {
			return errs.New(errs.BadArgument, "report.Write", closeErr)
		}
	}
	return nil
}
