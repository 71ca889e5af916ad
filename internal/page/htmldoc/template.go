package htmldoc

import "html/template"

// StationView feeds the built-in template
type StationView struct {
	// Class is the kebab-cased shortcode used in element classes
	Class string
	// Shortcode is the station identifier as configured
	Shortcode string
}

var defaultTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>On Air</title>
<style>
.label { padding: 0 .4em; border-radius: .2em; }
.label-success { background: #2e7d32; color: #fff; }
.label-error { background: #c62828; color: #fff; }
.progressbar { background: #ddd; height: 4px; }
.progressbar div { background: #1565c0; height: 4px; width: 0; }
</style>
</head>
<body>
<p>Local time <span class="np-local-time"></span> <span class="np-local-timezone-short"></span> (<span class="np-local-timezone-long"></span>)</p>
{{- range .}}
<section id="{{.Class}}">
<h2><a class="np-{{.Class}}-station-player"><span class="np-{{.Class}}-station-name">{{.Shortcode}}</span></a>
<span class="np-{{.Class}}-station-isonline label" style="display: none;"></span>
<span class="np-{{.Class}}-show-islive" style="display: none;"></span></h2>
<p class="np-{{.Class}}-station-description"></p>
<p>Show: <span class="np-{{.Class}}-show-name"></span></p>
<img class="np-{{.Class}}-song-albumart" src="" width="150" height="150">
<p><span class="np-{{.Class}}-song-artist"></span> - <span class="np-{{.Class}}-song-title"></span>
<em class="np-{{.Class}}-song-album"></em>
<span class="np-{{.Class}}-song-isrequest" style="display: none;"></span></p>
<p><progress class="np-{{.Class}}-song-progress"></progress>
<span class="np-{{.Class}}-song-elapsed"></span> <span class="np-{{.Class}}-song-duration"></span></p>
<div class="progressbar"><div class="np-{{.Class}}-song-progressbar"></div></div>
<p>Listeners <span class="np-{{.Class}}-station-listeners-current"></span>
(unique <span class="np-{{.Class}}-station-listeners-unique"></span>,
total <span class="np-{{.Class}}-station-listeners-total"></span>)</p>
<p>Station time <span class="np-{{.Class}}-station-time"></span>
<span class="np-{{.Class}}-station-timezone"></span>
(<span class="np-{{.Class}}-station-timediff-hhmm"></span>,
<span class="np-{{.Class}}-station-timediff-minutes"></span> min)</p>
<p><a class="np-{{.Class}}-video-player"></a></p>
</section>
{{- end}}
</body>
</html>
`))
