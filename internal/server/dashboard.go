package server

// DashboardHTML is the embedded single-page replay monitor. Results arrive
// over /ws; totals are refreshed from /api/summary.
const DashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Rhythm Monitor</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: ui-monospace, Menlo, Consolas, monospace; background: #101418; color: #d0d7de; padding: 20px; }
  h1 { color: #7cc4fa; font-size: 1.4em; }
  .sub { color: #8b949e; font-size: 0.85em; margin: 4px 0 18px; }
  .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(130px, 1fr)); gap: 10px; margin-bottom: 18px; }
  .card { background: #171c22; border: 1px solid #2d333b; border-radius: 6px; padding: 12px; text-align: center; }
  .card b { display: block; font-size: 1.7em; }
  .card span { font-size: 0.75em; color: #8b949e; text-transform: uppercase; }
  .ok { color: #56d364; } .client { color: #e3b341; } .server { color: #f47067; } .fail { color: #f47067; } .info { color: #7cc4fa; }
  #conn.up { color: #56d364; } #conn.down { color: #f47067; }
  table { width: 100%; border-collapse: collapse; background: #171c22; border: 1px solid #2d333b; font-size: 0.85em; }
  th { text-align: left; color: #7cc4fa; padding: 8px; border-bottom: 1px solid #2d333b; position: sticky; top: 0; background: #171c22; }
  td { padding: 6px 8px; border-bottom: 1px solid #22272e; white-space: nowrap; }
  td.path { max-width: 520px; overflow: hidden; text-overflow: ellipsis; }
  .log { max-height: 520px; overflow-y: auto; }
</style>
</head>
<body>
<h1>Rhythm Monitor</h1>
<p class="sub">Live replay results &middot; <span id="conn" class="down">disconnected</span> &middot; <span id="rate">0</span> results/s</p>

<div class="cards">
  <div class="card"><b class="info" id="s-dispatched">0</b><span>Dispatched</span></div>
  <div class="card"><b class="info" id="s-completed">0</b><span>Completed</span></div>
  <div class="card"><b class="ok" id="s-succeeded">0</b><span>Responses</span></div>
  <div class="card"><b class="fail" id="s-failed">0</b><span>Failed</span></div>
  <div class="card"><b class="client" id="s-dropped">0</b><span>Dropped</span></div>
  <div class="card"><b class="info" id="s-ttfb">0ms</b><span>Mean TTFB</span></div>
</div>

<div class="log">
<table>
  <thead><tr><th>Replayed</th><th>Method</th><th>Status</th><th>Orig</th><th>TTFB</th><th>Path</th></tr></thead>
  <tbody id="rows"></tbody>
</table>
</div>

<script>
const rows = document.getElementById('rows');
const MAX_ROWS = 300;
let stamps = [];

function esc(s) {
  const d = document.createElement('div');
  d.textContent = s == null ? '' : String(s);
  return d.innerHTML;
}

function statusClass(code) {
  if (code === 0) return 'fail';
  if (code >= 500) return 'server';
  if (code >= 400) return 'client';
  return 'ok';
}

function addResult(r) {
  const now = Date.now();
  stamps.push(now);
  stamps = stamps.filter(t => now - t < 1000);
  document.getElementById('rate').textContent = stamps.length;

  const tr = document.createElement('tr');
  const when = new Date(r.replay_time).toLocaleTimeString('en-GB', {hour12: false});
  const status = r.status === 0 ? (r.rejected ? 'rejected' : 'failed') : r.status;
  tr.innerHTML =
    '<td>' + esc(when) + '</td>' +
    '<td>' + esc(r.method) + '</td>' +
    '<td class="' + statusClass(r.status) + '" title="' + esc(r.error) + '">' + esc(status) + '</td>' +
    '<td>' + esc(r.original_status == null ? '-' : r.original_status) + '</td>' +
    '<td>' + (r.ttfb / 1e6).toFixed(1) + 'ms</td>' +
    '<td class="path">' + esc(r.path) + '</td>';
  rows.insertBefore(tr, rows.firstChild);
  while (rows.children.length > MAX_ROWS) rows.removeChild(rows.lastChild);
}

function connect() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/ws');
  const conn = document.getElementById('conn');
  ws.onopen = () => { conn.textContent = 'connected'; conn.className = 'up'; };
  ws.onclose = () => { conn.textContent = 'disconnected'; conn.className = 'down'; setTimeout(connect, 2000); };
  ws.onmessage = (e) => addResult(JSON.parse(e.data));
}

async function refresh() {
  try {
    const res = await fetch('/api/summary');
    if (res.ok) {
      const s = await res.json();
      for (const k of ['dispatched', 'completed', 'succeeded', 'failed', 'dropped']) {
        document.getElementById('s-' + k).textContent = s[k];
      }
      document.getElementById('s-ttfb').textContent = (s.mean_ttfb / 1e6).toFixed(1) + 'ms';
    }
  } catch (e) {}
}

async function backfill() {
  try {
    const res = await fetch('/api/results?n=' + MAX_ROWS);
    if (res.ok) (await res.json()).forEach(addResult);
  } catch (e) {}
}

backfill().then(connect);
refresh();
setInterval(refresh, 2000);
</script>
</body>
</html>`
