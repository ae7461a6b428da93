package viewer

// The UI is embedded as plain strings so the binary stays self-contained.
// It is a static page over /data.json; all rendering happens client side.

// indexHTML is the viewer page shell.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>llmpath</title>
<link rel="stylesheet" href="/style.css">
</head>
<body>
<header>
  <h1>llmpath</h1>
  <span id="stats" class="stats"></span>
  <span id="conn" class="conn off">offline</span>
</header>
<main>
  <section class="pane forest">
    <h2>Requests</h2>
    <div id="forest-list"><div class="empty">Loading...</div></div>
  </section>
  <section class="pane detail">
    <h2>Conversation</h2>
    <div id="detail-body"><div class="empty">Select a request</div></div>
  </section>
</main>
<script src="/app.js"></script>
</body>
</html>
`

// appJS renders the request forest and the selected conversation, and
// refetches the artifact when the server pushes a reload.
const appJS = `// llmpath viewer frontend.

let data = { messages: [], tools: [], requests: [] };
let messagesById = {};
let toolsById = {};
let requestsById = {};
let selectedId = null;

function esc(s) {
  return String(s).replace(/&/g, '&amp;').replace(/</g, '&lt;').replace(/>/g, '&gt;')
    .replace(/"/g, '&quot;');
}

function indexArtifact() {
  messagesById = {};
  for (const m of data.messages || []) messagesById[m.id] = m;
  toolsById = {};
  for (const t of data.tools || []) toolsById[t.id] = t;
  requestsById = {};
  for (const r of data.requests || []) requestsById[r.id] = r;
}

function fmtTime(ts) {
  if (!ts) return '';
  const d = new Date(ts);
  return isNaN(d) ? String(ts) : d.toLocaleTimeString();
}

function fmtStamp(ts) {
  if (!ts) return '';
  const d = new Date(ts);
  return isNaN(d) ? String(ts) : d.toLocaleString();
}

function fmtDuration(ms) {
  if (ms == null) return '';
  return ms >= 1000 ? (ms / 1000).toFixed(1) + 's' : Math.round(ms) + 'ms';
}

async function load() {
  try {
    const res = await fetch('/data.json');
    if (!res.ok) throw new Error('HTTP ' + res.status);
    data = await res.json();
    indexArtifact();
    renderStats();
    renderForest();
    renderDetail();
  } catch (err) {
    document.getElementById('forest-list').innerHTML =
      '<div class="empty">Failed to load data.json: ' + esc(err.message) + '</div>';
  }
}

function renderStats() {
  const reqs = data.requests || [];
  const errors = reqs.filter((r) => r.error).length;
  document.getElementById('stats').textContent =
    reqs.length + ' requests, ' + (data.messages || []).length + ' messages, ' +
    (data.tools || []).length + ' tools' + (errors ? ', ' + errors + ' errors' : '');
}

// renderForest lays the requests out as an indented tree: roots at the
// left margin, every follow-up one step under its parent.
function renderForest() {
  const reqs = data.requests || [];
  const children = {};
  const roots = [];
  for (const r of reqs) {
    if (r.parent_id && requestsById[r.parent_id]) {
      (children[r.parent_id] = children[r.parent_id] || []).push(r);
    } else {
      roots.push(r);
    }
  }
  const rows = [];
  const walk = (r, depth) => {
    rows.push(requestRow(r, depth));
    for (const c of children[r.id] || []) walk(c, depth + 1);
  };
  for (const r of roots) walk(r, 0);

  const list = document.getElementById('forest-list');
  list.innerHTML = rows.join('') || '<div class="empty">No requests captured yet</div>';
  for (const el of list.querySelectorAll('.request-row')) {
    el.addEventListener('click', () => {
      selectedId = el.dataset.id;
      renderForest();
      renderDetail();
    });
  }
}

function requestRow(r, depth) {
  const cls = ['request-row'];
  if (r.id === selectedId) cls.push('selected');
  if (r.error) cls.push('errored');
  const turns = (r.request_messages || []).length;
  return '<div class="' + cls.join(' ') + '" data-id="' + esc(r.id) + '"' +
    ' style="margin-left:' + depth * 18 + 'px">' +
    '<span class="row-time">' + esc(fmtTime(r.timestamp)) + '</span>' +
    '<span class="row-model">' + esc(r.model || '?') + '</span>' +
    '<span class="row-meta">' + turns + ' msg' + (turns === 1 ? '' : 's') +
    (r.duration_ms != null ? ' · ' + fmtDuration(r.duration_ms) : '') + '</span>' +
    (r.error ? '<span class="badge error-badge">error</span>' : '') +
    (r.parent_id ? '' : '<span class="badge root-badge">root</span>') +
    '</div>';
}

function renderDetail() {
  const el = document.getElementById('detail-body');
  const r = requestsById[selectedId];
  if (!r) {
    el.innerHTML = '<div class="empty">Select a request</div>';
    return;
  }
  const parts = [detailHeader(r)];
  const inherited = inheritedCount(r);
  (r.request_messages || []).forEach((id, i) => {
    parts.push(messageCard(id, i >= inherited));
  });
  parts.push('<div class="divider">response</div>');
  for (const id of r.response_messages || []) parts.push(messageCard(id, false));
  el.innerHTML = parts.join('');
}

// inheritedCount returns how many leading request messages were already
// in the parent's context, so the new suffix can be highlighted.
function inheritedCount(r) {
  const parent = r.parent_id && requestsById[r.parent_id];
  if (!parent) return 0;
  const expected = (parent.request_messages || []).concat(parent.response_messages || []);
  const msgs = r.request_messages || [];
  let n = 0;
  while (n < msgs.length && n < expected.length && msgs[n] === expected[n]) n++;
  return n;
}

function detailHeader(r) {
  const tools = (r.tools || []).map((id) => {
    const t = toolsById[id];
    return '<span class="tool-chip">' + esc(t ? t.name : id) + '</span>';
  }).join('');
  return '<div class="detail-header">' +
    '<div><span class="row-model">' + esc(r.model || '?') + '</span> ' +
    '<span class="row-meta">' + esc(fmtStamp(r.timestamp)) +
    (r.duration_ms != null ? ' · ' + fmtDuration(r.duration_ms) : '') + '</span></div>' +
    (r.error ? '<div class="error-line">' + esc(r.error) + '</div>' : '') +
    (tools ? '<div class="tools-line">' + tools + '</div>' : '') +
    '</div>';
}

function messageCard(id, isNew) {
  const m = messagesById[id];
  if (!m) return '<div class="message"><div class="content">missing message ' + esc(id) + '</div></div>';
  const cls = ['message', 'role-' + esc(m.role)];
  if (isNew) cls.push('new');
  if (m.is_error) cls.push('tool-error');

  let body = '';
  if (m.content) body += '<div class="content">' + esc(m.content) + '</div>';
  for (const tc of m.tool_calls || []) {
    body += '<div class="tool-call">' + esc(tc.name) + '(' +
      esc(JSON.stringify(tc.arguments)) + ')</div>';
  }

  let label = m.role;
  if (m.tool_use_id) label += ' · result for ' + m.tool_use_id;
  return '<div class="' + cls.join(' ') + '">' +
    '<div class="message-head"><span class="role">' + esc(label) + '</span>' +
    '<span class="mid">' + esc(id) + '</span></div>' + body + '</div>';
}

function connectWebSocket() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/ws');
  ws.onopen = () => setStatus(true);
  ws.onmessage = (event) => {
    try {
      const msg = JSON.parse(event.data);
      if (msg.type === 'reload') load();
    } catch (err) {
      console.error('bad websocket message', err);
    }
  };
  ws.onclose = () => {
    setStatus(false);
    setTimeout(connectWebSocket, 3000);
  };
  ws.onerror = () => ws.close();
}

function setStatus(connected) {
  const el = document.getElementById('conn');
  el.textContent = connected ? 'live' : 'offline';
  el.className = 'conn ' + (connected ? 'on' : 'off');
}

load();
connectWebSocket();
`

// styleCSS is the viewer stylesheet.
const styleCSS = `* { margin: 0; padding: 0; box-sizing: border-box; }

body {
  font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
  background: #0f1117;
  color: #e6edf3;
  height: 100vh;
  display: flex;
  flex-direction: column;
}

header {
  display: flex;
  align-items: baseline;
  gap: 16px;
  padding: 14px 20px;
  background: #161b22;
  border-bottom: 1px solid #30363d;
}
header h1 { font-size: 18px; }
.stats { color: #8b949e; font-size: 13px; flex: 1; }
.conn { font-size: 12px; padding: 2px 10px; border-radius: 10px; border: 1px solid #30363d; }
.conn.on { color: #3fb950; }
.conn.off { color: #8b949e; }

main { flex: 1; display: flex; min-height: 0; }
.pane { overflow-y: auto; padding: 16px 20px; }
.pane.forest { width: 44%; border-right: 1px solid #30363d; }
.pane.detail { flex: 1; }
.pane h2 {
  font-size: 13px;
  text-transform: uppercase;
  letter-spacing: 0.5px;
  color: #8b949e;
  margin-bottom: 12px;
}

.empty { color: #8b949e; font-size: 13px; padding: 12px 0; }

.request-row {
  display: flex;
  align-items: center;
  gap: 10px;
  padding: 7px 10px;
  margin-bottom: 4px;
  background: #161b22;
  border: 1px solid #30363d;
  border-radius: 6px;
  cursor: pointer;
  font-size: 13px;
}
.request-row:hover { border-color: #58a6ff; }
.request-row.selected { border-color: #58a6ff; background: #1c2128; }
.request-row.errored { border-left: 3px solid #f85149; }
.row-time { color: #8b949e; font-variant-numeric: tabular-nums; }
.row-model { color: #58a6ff; }
.row-meta { color: #8b949e; margin-left: auto; }
.badge { font-size: 11px; padding: 1px 7px; border-radius: 9px; border: 1px solid #30363d; color: #8b949e; }
.error-badge { color: #f85149; border-color: #f85149; }
.root-badge { color: #3fb950; border-color: #3fb950; }

.detail-header {
  padding: 10px 12px;
  margin-bottom: 14px;
  background: #161b22;
  border: 1px solid #30363d;
  border-radius: 6px;
  font-size: 13px;
}
.error-line { margin-top: 6px; color: #f85149; }
.tools-line { margin-top: 8px; display: flex; flex-wrap: wrap; gap: 6px; }
.tool-chip { font-size: 11px; padding: 1px 8px; border: 1px solid #30363d; border-radius: 9px; color: #d2a8ff; }

.message {
  padding: 8px 12px;
  margin-bottom: 8px;
  background: #161b22;
  border: 1px solid #30363d;
  border-radius: 6px;
  font-size: 13px;
}
.message.new { border-left: 3px solid #3fb950; }
.message.tool-error { border-left: 3px solid #f85149; }
.message-head { display: flex; justify-content: space-between; margin-bottom: 4px; }
.role { font-weight: 600; font-size: 12px; text-transform: uppercase; letter-spacing: 0.4px; }
.role-system .role { color: #d29922; }
.role-user .role { color: #3fb950; }
.role-assistant .role { color: #58a6ff; }
.role-thinking .role { color: #8b949e; }
.role-tool_use .role, .role-tool_result .role { color: #d2a8ff; }
.mid { color: #8b949e; font-size: 11px; font-family: ui-monospace, monospace; }
.content { white-space: pre-wrap; word-break: break-word; }
.tool-call {
  margin-top: 6px;
  padding: 6px 8px;
  background: #0f1117;
  border-radius: 4px;
  font-family: ui-monospace, monospace;
  font-size: 12px;
  color: #d2a8ff;
  word-break: break-all;
}
.divider {
  text-align: center;
  color: #8b949e;
  font-size: 11px;
  text-transform: uppercase;
  letter-spacing: 1px;
  margin: 14px 0;
}
`
