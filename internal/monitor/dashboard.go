package monitor

// DashboardHTML is the embedded single-page monitor. It connects to /ws and
// lists messages as they are captured or replayed.
const DashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Mavtape Monitor</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: ui-monospace, Menlo, Consolas, monospace; background: #0d1117; color: #c9d1d9; padding: 20px; }
  h1 { color: #58a6ff; font-size: 1.4em; margin-bottom: 16px; }
  .bar { display: flex; gap: 24px; margin-bottom: 16px; padding: 10px 14px; background: #161b22; border: 1px solid #30363d; border-radius: 6px; }
  .label { font-size: 0.7em; color: #8b949e; text-transform: uppercase; display: block; }
  .value { font-size: 1.1em; font-weight: 600; }
  .ok { color: #3fb950; } .down { color: #f85149; }
  #events { background: #161b22; border: 1px solid #30363d; border-radius: 6px; max-height: 560px; overflow-y: auto; }
  .row { display: grid; grid-template-columns: 110px 80px 90px 90px 70px 70px 1fr; padding: 6px 14px; border-bottom: 1px solid #21262d; font-size: 0.82em; }
  .head { color: #58a6ff; font-weight: 600; position: sticky; top: 0; background: #161b22; }
  .capture { color: #d2a8ff; } .replay { color: #3fb950; }
</style>
</head>
<body>
<h1>Mavtape Monitor</h1>
<div class="bar">
  <div><span class="label">Connection</span><span class="value down" id="conn">Disconnected</span></div>
  <div><span class="label">Messages</span><span class="value" id="total">0</span></div>
  <div><span class="label">Msgs/sec</span><span class="value" id="rate">0</span></div>
  <div><span class="label">Status</span><span class="value" id="status">-</span></div>
</div>
<div id="events">
  <div class="row head"><span>time</span><span>kind</span><span>endpoint</span><span>index</span><span>msg id</span><span>size</span><span>summary</span></div>
</div>
<script>
let total = 0, recent = [];
const events = document.getElementById('events');
const MAX_ROWS = 300;

function connect() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/ws');
  ws.onopen = () => setConn('Connected', 'value ok');
  ws.onclose = () => { setConn('Disconnected', 'value down'); setTimeout(connect, 2000); };
  ws.onmessage = (e) => addEvent(JSON.parse(e.data));
}

function setConn(text, cls) {
  const el = document.getElementById('conn');
  el.textContent = text;
  el.className = cls;
}

function addEvent(ev) {
  total++;
  const now = Date.now();
  recent.push(now);
  recent = recent.filter(t => now - t < 1000);
  document.getElementById('total').textContent = total;
  document.getElementById('rate').textContent = recent.length;

  const row = document.createElement('div');
  row.className = 'row';
  const time = new Date(ev.time).toLocaleTimeString('en-US', {hour12: false, fractionalSecondDigits: 3});
  row.innerHTML =
    '<span>' + time + '</span>' +
    '<span class="' + ev.kind + '">' + ev.kind + '</span>' +
    '<span>' + esc(ev.endpoint + (ev.job ? ' ' + ev.job : '')) + '</span>' +
    '<span>' + ev.index + '</span>' +
    '<span>' + ev.message_id + '</span>' +
    '<span>' + ev.size + '</span>' +
    '<span>' + esc(ev.summary || '') + '</span>';
  events.insertBefore(row, events.children[1] || null);
  while (events.children.length > MAX_ROWS) {
    events.removeChild(events.lastChild);
  }
}

function pollStatus() {
  fetch('/status').then(r => r.json()).then(s => {
    document.getElementById('status').textContent = JSON.stringify(s);
  }).catch(() => {});
}

function esc(s) {
  const d = document.createElement('div');
  d.textContent = s;
  return d.innerHTML;
}

connect();
setInterval(pollStatus, 1000);
</script>
</body>
</html>`
