package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/canary/internal/display"
	"github.com/sweeney/canary/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Canary</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.NORMAL, .RECOVERING { color: green; font-weight: bold; }
.STUFFY, .OPEN_WINDOW { color: orange; font-weight: bold; }
.PASS_OUT, .DEAD { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Canary<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateOrUnknown (printf "%s" .State)}}">{{stateOrUnknown (printf "%s" .State)}}</td></tr>
<tr><th>Halted</th><td id="halted">{{if .Halted}}yes{{else}}no{{end}}</td></tr>
<tr><th>Position</th><td id="position">{{.Position}}</td></tr>
<tr><th>Last change</th><td>{{if .LastChange.IsZero}}never{{else}}{{.LastChange.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
</table>

<h2>Panel</h2>
{{if eq .View "tombstone"}}<p id="panel">{{range .Tombstone}}{{.}} {{end}}</p>
{{else}}<table id="panel">
<tr><th>CO2</th><td id="co2">{{.Panel.CO2}}</td></tr>
<tr><th>TEMP</th><td>{{.Panel.Temperature}}</td></tr>
<tr><th>RH</th><td>{{.Panel.Humidity}}</td></tr>
<tr><th>TVOC</th><td>{{.Panel.TVOC}}</td></tr>
<tr><th>PM2.5</th><td>{{.Panel.Particulate}}</td></tr>
<tr><th>Mode</th><td id="mode">{{.Panel.Mode}}</td></tr>
</table>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>STUFFY</th><td>{{.Counts.Stuffy}}</td></tr>
<tr><th>OPEN_WINDOW</th><td>{{.Counts.OpenWindow}}</td></tr>
<tr><th>PASS_OUT</th><td>{{.Counts.PassOut}}</td></tr>
<tr><th>DEAD</th><td>{{.Counts.Dead}}</td></tr>
<tr><th>RECOVERING</th><td>{{.Counts.Recovering}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Thresholds</th><td>{{.Config.Thresholds.Stuffy}} / {{.Config.Thresholds.OpenWindow}} / {{.Config.Thresholds.PassOut}} / {{.Config.Thresholds.Dead}} ppm</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
{{if .Config.SessionID}}<tr><th>Session</th><td>{{.Config.SessionID}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var stateEl = document.getElementById("state");
  var haltedEl = document.getElementById("halted");
  var positionEl = document.getElementById("position");
  var co2El = document.getElementById("co2");
  var modeEl = document.getElementById("mode");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function pad(n) {
    var s = String(n);
    while (s.length < 4) s = "0" + s;
    return s;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        stateEl.textContent = s.state;
        stateEl.className = s.state;
        haltedEl.textContent = s.halted ? "yes" : "no";
        positionEl.textContent = s.actuator_position;
        if (co2El) co2El.textContent = pad(s.readings.co2) + "ppm";
        if (modeEl) modeEl.textContent = s.modes.label;
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Panel     display.Panel
		Tombstone []string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Panel:     display.NewPanel(snap.Readings, snap.Modes),
		Tombstone: display.Tombstone,
	}
	return indexTmpl.Execute(w, data)
}
