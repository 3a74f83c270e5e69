package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/feedback-controller/internal/logic"
	"github.com/sweeney/feedback-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"bound": func(b logic.Bound) string {
		if !b.IsSet {
			return "-"
		}
		return b.String()
	},
	"fixed": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
	"code": func(c byte) string {
		return string(c)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>Feedback Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.alarm { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Feedback Controller</h1>

<h2>State</h2>
<table>
<tr><th>Outputs</th><td id="state" class="{{if eq .State "ON"}}on{{else if eq .State "OFF"}}off{{else}}unknown{{end}}">{{.State}}</td></tr>
<tr><th>Alarm</th><td id="alarm" class="{{if .Controller.AlarmActive}}alarm{{else}}off{{end}}">{{if .Controller.AlarmActive}}active since {{.Controller.AlarmSince}}ms{{else}}clear{{end}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="alarm">{{.LastError}}</td></tr>{{end}}
</table>

<h2>Inputs</h2>
<table>
{{range .Controller.Readings}}<tr><th>{{.Name}} ({{code .ParameterCode}})</th><td>{{fixed .Value}}</td></tr>
{{end}}{{if .Polled}}<tr><th>Min / Avg / Max</th><td>{{fixed .Controller.Stats.Min}} / {{fixed .Controller.Stats.Avg}} / {{fixed .Controller.Stats.Max}}</td></tr>{{end}}
</table>

<h2>Control</h2>
<table>
<tr><th>Setpoint</th><td>{{.Controller.Settings.Setpoint}} &plusmn; {{.Controller.Settings.Hysteresis}}</td></tr>
<tr><th>Lower / Upper bound</th><td>{{bound .Controller.Settings.LowerBound}} / {{bound .Controller.Settings.UpperBound}}</td></tr>
<tr><th>Alarm thresholds</th><td>{{bound .Controller.Settings.AlarmLow}} / {{bound .Controller.Settings.AlarmHigh}} (grace {{.Controller.Settings.GracePeriod}})</td></tr>
<tr><th>Polarity</th><td>{{if .Controller.Settings.InverselyProportional}}inverse{{else}}direct{{end}}</td></tr>
<tr><th>Outputs</th><td>{{range $i, $o := .Config.Outputs}}{{if $i}}, {{end}}{{$o}}{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Output ON</th><td>{{.Counts.OutputOn}}</td></tr>
<tr><th>Output OFF</th><td>{{.Counts.OutputOff}}</td></tr>
<tr><th>Alarms</th><td>{{.Counts.AlarmRegistered}}</td></tr>
<tr><th>Poll errors</th><td>{{.Counts.PollErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Control period</th><td>{{.Config.ControlPeriodMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		State  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		State:    snap.StateLabel(),
	}
	return indexTmpl.Execute(w, data)
}
