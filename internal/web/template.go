package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sensor-node/internal/status"
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
	"inputState": func(active, baselined bool) string {
		if !baselined {
			return "UNKNOWN"
		}
		return status.InputState(active)
	},
	"temp": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"epoch": func(ts int64) string {
		if ts <= 0 {
			return "no clock"
		}
		return time.Unix(ts, 0).UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Config.Device}} sensor node</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.active { color: green; font-weight: bold; }
.inactive { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.alarm { color: red; font-weight: bold; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>{{.Config.Device}}{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Inputs</h2>
<table>
{{range .Inputs}}{{$s := inputState .Active .Baselined}}<tr><th>Pin {{.Pin}} ({{.Polarity}})</th><td id="pin-{{.Pin}}" class="{{if eq $s "ACTIVE"}}active{{else if eq $s "INACTIVE"}}inactive{{else}}unknown{{end}}">{{$s}}</td><td>{{.Changes}} changes</td></tr>
{{else}}<tr><td>no inputs configured</td></tr>
{{end}}<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>LED</th><td>{{if .LED}}on{{else}}off{{end}}</td></tr>
<tr><th>Commands</th><td>{{.Commands}}</td></tr>
</table>

<h2>Climate</h2>
<table>
{{if .Reading}}<tr><th>Temperature</th><td>{{temp .Reading.TempC}} °C</td></tr>
<tr><th>Humidity</th><td>{{temp .Reading.HumPct}} %</td></tr>
<tr><th>Read at</th><td>{{epoch .Reading.Epoch}}</td></tr>
{{else}}<tr><th>Reading</th><td class="unknown">none yet</td></tr>
{{end}}{{if .MinMax.Valid}}<tr><th>Today min / max</th><td>{{temp .MinMax.Min}} / {{temp .MinMax.Max}} °C</td></tr>
<tr><th>Reset</th><td>{{.MinMax.DateKey}}</td></tr>
{{end}}{{if .Alarm}}<tr><th>Alarm</th><td class="alarm">{{.Alarm}}</td></tr>
{{end}}<tr><th>Sensor errors</th><td>{{.SensorFailures}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Link</th><td class="{{if eq .LinkStatus "connected"}}connected{{else}}disconnected{{end}}">{{.LinkStatus}}</td></tr>
<tr><th>MQTT</th><td class="{{if .SessionConnected}}connected{{else}}disconnected{{end}}">{{if .SessionConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topics</th><td>{{.Config.BaseTopic}}/#</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Version</th><td>{{.Config.Version}}</td></tr>
<tr><th>Boot</th><td>#{{.Boot.Count}} ({{.Boot.ID}})</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Sensor</th><td>{{if eq .Config.SensorMs 0}}disabled{{else}}{{.Config.SensorMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5.10.1/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Config.BaseTopic}}/events";
  var dot = document.getElementById("live-dot");

  function setState(pin, active) {
    var el = document.getElementById("pin-" + pin);
    if (!el) return;
    el.textContent = active ? "ACTIVE" : "INACTIVE";
    el.className = active ? "active" : "inactive";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (typeof msg.pin === "number") {
        setState(msg.pin, msg.state === 1);
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
