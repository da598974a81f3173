package web

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/sweeney/spacebus/internal/status"
)

// mqttScript is the browser MQTT client used for live cell updates.
const mqttScript = "https://unpkg.com/mqtt@5/dist/mqtt.min.js"

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"clock":   clock,
	"seconds": func(d time.Duration) string { return fmt.Sprintf("%.1fs", d.Seconds()) },
	"stateOrIdle": func(s string) string {
		if s == "" {
			return "idle"
		}
		return s
	},
	"lamp": func(v any) string {
		switch b := v.(type) {
		case bool:
			if b {
				return "lamp on"
			}
			return "lamp off"
		}
		return "value"
	},
}).Parse(indexHTML))

// clock renders d as [Nd ]HH:MM:SS.
func clock(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hms := fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	if days > 0 {
		return fmt.Sprintf("%dd %s", int(days), hms)
	}
	return hms
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Spacebus console</title>
<style>
body { background: #10141a; color: #cfd8e3; font-family: monospace; max-width: 760px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.3em; letter-spacing: .1em; }
h2 { font-size: 1em; color: #7d8da1; text-transform: uppercase; border-bottom: 1px solid #2a3340; }
dl { display: grid; grid-template-columns: 14em 1fr; gap: 2px 12px; }
dt { color: #7d8da1; }
dd { margin: 0; }
.running { color: #5fd35f; }
.ended { color: #7d8da1; }
.idle { color: #f0b040; }
.up { color: #5fd35f; }
.down { color: #ff5f5f; }
.link { display: inline-block; width: 9px; height: 9px; border-radius: 50%; margin-left: 8px; background: #f0b040; }
.link.live { background: #5fd35f; }
.link.lost { background: #ff5f5f; }
.cells { display: grid; grid-template-columns: repeat(auto-fill, minmax(220px, 1fr)); gap: 4px; }
.cell { display: flex; justify-content: space-between; padding: 2px 6px; border: 1px solid #2a3340; }
.lamp { width: 3em; text-align: center; }
.lamp.on { background: #3a7d3a; color: #fff; }
.lamp.off { background: #2a3340; }
.controls form { display: inline; }
button { background: #2a3340; color: #cfd8e3; border: 1px solid #445266; padding: 3px 10px; font-family: monospace; }
a { color: #7fb2ff; }
</style>
</head>
<body>
<h1>SPACEBUS{{if .Config.WSBroker}}<span id="link" class="link" title="connecting"></span>{{end}}</h1>

<h2>Mission</h2>
<dl>
<dt>Scenario</dt><dd>{{.Game.Scenario}}</dd>
<dt>State</dt><dd class="{{stateOrIdle .Game.State}}">{{stateOrIdle .Game.State}}{{if .Game.Paused}} (paused){{end}}</dd>
<dt>Step</dt><dd>{{if .Game.Step}}{{.Game.Step}} ({{.Game.Index}}/{{.Game.Steps}}){{else}}-{{end}}</dd>
<dt>Elapsed</dt><dd>{{seconds .Game.Elapsed}}</dd>
<dt>Simulated time</dt><dd>{{seconds .Game.SimTime}}</dd>
<dt>Pending timers</dt><dd>{{.Game.PendingTimers}}</dd>
<dt>Main power</dt><dd>{{printf "%.3f" .Game.MainPower}}</dd>
<dt>Solar power</dt><dd>{{printf "%.3f" .Game.SolarPower}}</dd>
</dl>

<div class="controls">
{{range $cmd := .Commands}}<form method="post" action="/api/{{$cmd}}"><button>{{$cmd}}</button></form>
{{end}}<form method="post" action="/api/goto"><input name="id" size="12" placeholder="step id"><button>goto</button></form>
</div>

<h2>Counters</h2>
<dl>
<dt>Games</dt><dd>{{.Counts.Games}}</dd>
<dt>Steps won / lost</dt><dd>{{.Counts.StepsWon}} / {{.Counts.StepsLost}}</dd>
<dt>Refused changes</dt><dd>{{.Counts.Vetoes}}</dd>
<dt>Inputs raw / emitted</dt><dd>{{.Counts.RawInputs}} / {{.Counts.Emitted}}</dd>
<dt>Ghosts / suppressed</dt><dd>{{.Counts.Ghosts}} / {{.Counts.Suppressed}}</dd>
</dl>

{{if .CellRows}}<h2>Cells</h2>
<div class="cells">
{{range .CellRows}}<div class="cell"><span>{{.Name}}</span><span id="cell-{{.Name}}" class="{{lamp .Value}}">{{.Value}}</span></div>
{{end}}</div>{{end}}

<h2>Link</h2>
<dl>
<dt>MQTT</dt><dd class="{{if .MQTTConnected}}up{{else}}down{{end}}">{{if .MQTTConnected}}up{{else}}down{{end}} {{.Config.Broker}}</dd>
<dt>Topic prefix</dt><dd>{{.Config.Prefix}}</dd>
{{with .Network}}<dt>Network</dt><dd>{{.Status}} {{.Type}}{{if .SSID}} ({{.SSID}}){{end}} {{.IP}}</dd>{{end}}
</dl>

<h2>Daemon</h2>
<dl>
<dt>Up</dt><dd>{{clock .Uptime}} since {{.StartTime.UTC.Format "2006-01-02 15:04:05Z"}}</dd>
<dt>Tick / firewall</dt><dd>{{.Config.TickMs}}ms / {{.Config.FirewallMs}}ms</dd>
<dt>Heartbeat</dt><dd>{{if .Config.HeartbeatMs}}{{.Config.HeartbeatMs}}ms{{else}}off{{end}}</dd>
<dt>Scenario file</dt><dd>{{.Config.Scenario}}</dd>
</dl>

<p><a href="/index.json">index.json</a> · <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="{{.Script}}"></script>
<script>
(function() {
  var link = document.getElementById("link");
  var mark = function(cls, title) { link.className = "link " + cls; link.title = title; };
  var client = mqtt.connect("{{.Config.WSBroker}}", { reconnectPeriod: 5000 });
  client.on("connect", function() {
    mark("live", "live");
    client.subscribe("{{.Config.Prefix}}/state/+");
  });
  client.on("reconnect", function() { mark("", "reconnecting"); });
  client.on("offline", function() { mark("lost", "offline"); });
  client.on("error", function() { mark("lost", "error"); });
  client.on("message", function(topic, payload) {
    var msg;
    try { msg = JSON.parse(payload.toString()); } catch (e) { return; }
    if (!msg.state) { return; }
    var el = document.getElementById("cell-" + msg.state.name);
    if (!el) { return; }
    el.textContent = String(msg.state.new);
    if (typeof msg.state.new === "boolean") {
      el.className = "lamp " + (msg.state.new ? "on" : "off");
    }
  });
})();
</script>
{{end}}
</body>
</html>
`

// pageCommands are the operator buttons rendered on the page.
var pageCommands = []string{"start", "pause", "resume", "fulfill", "restart", "reset"}

type cellRow struct {
	Name  string
	Value any
}

func cellRows(cells map[string]any) []cellRow {
	rows := make([]cellRow, 0, len(cells))
	for name, v := range cells {
		rows = append(rows, cellRow{Name: name, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		CellRows []cellRow
		Commands []string
		Script   string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		CellRows: cellRows(snap.Cells),
		Commands: pageCommands,
		Script:   mqttScript,
	}
	indexTmpl.Execute(w, data)
}
