package report

// htmlTemplate renders a runner.Result. Charts are drawn with Chart.js from
// the embedded time series.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Scenario}} - Load Test Report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg: #f8fafc;
            --card: #ffffff;
            --text: #1e293b;
            --muted: #64748b;
            --border: #e2e8f0;
            --pass: #22c55e;
            --fail: #ef4444;
            --warn: #f59e0b;
            --accent: #3b82f6;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.5;
        }
        .container { max-width: 1200px; margin: 0 auto; padding: 2rem; }
        .card {
            background: var(--card);
            border: 1px solid var(--border);
            border-radius: 10px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
        }
        header { display: flex; justify-content: space-between; align-items: center; flex-wrap: wrap; gap: 1rem; }
        header h1 { font-size: 1.6rem; }
        .muted { color: var(--muted); font-size: 0.9rem; }
        .status { padding: 0.4rem 1rem; border-radius: 999px; font-weight: 700; color: #fff; }
        .status.pass { background: var(--pass); }
        .status.fail { background: var(--fail); }
        .status.warn { background: var(--warn); }
        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 1rem; }
        .stat .label { color: var(--muted); font-size: 0.8rem; text-transform: uppercase; }
        .stat .value { font-size: 1.5rem; font-weight: 700; }
        h2 { font-size: 1.1rem; margin-bottom: 1rem; }
        table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        th, td { text-align: left; padding: 0.45rem 0.6rem; border-bottom: 1px solid var(--border); }
        th { color: var(--muted); font-weight: 600; }
        td.mono { font-family: ui-monospace, Menlo, Consolas, monospace; }
        tr.sub td:first-child { padding-left: 2rem; color: var(--muted); }
        .icon.pass { color: var(--pass); font-weight: 700; }
        .icon.fail { color: var(--fail); font-weight: 700; }
        .charts { display: grid; grid-template-columns: repeat(auto-fit, minmax(450px, 1fr)); gap: 1.5rem; }
        footer { text-align: center; color: var(--muted); font-size: 0.8rem; padding: 1rem; }
    </style>
</head>
<body>
<div class="container">
    <div class="card">
        <header>
            <div>
                <h1>{{.Scenario}}</h1>
                {{if .Description}}<p class="muted">{{.Description}}</p>{{end}}
                <p class="muted">Started {{.StartTime.Format "2006-01-02 15:04:05"}} &middot; ran {{formatDuration .Duration}}</p>
            </div>
            {{if not .Passed}}<span class="status fail">&#10007; FAILED</span>
            {{else if .Interrupted}}<span class="status warn">INTERRUPTED</span>
            {{else}}<span class="status pass">&#10003; PASSED</span>{{end}}
        </header>
    </div>

    {{with .Metrics}}
    <div class="card stats">
        <div class="stat"><div class="label">Requests</div><div class="value">{{formatNumber .TotalRequests}}</div></div>
        <div class="stat"><div class="label">Throughput</div><div class="value">{{printf "%.1f" .RPS}} req/s</div></div>
        <div class="stat"><div class="label">Failed</div><div class="value">{{percent .ErrorRate}}</div></div>
        <div class="stat"><div class="label">p95</div><div class="value">{{formatLatency .Latency.P95}}</div></div>
        <div class="stat"><div class="label">Iterations</div><div class="value">{{formatNumber .Iterations}}</div></div>
        <div class="stat"><div class="label">Peak VUs</div><div class="value">{{.MaxVUs}}</div></div>
        <div class="stat"><div class="label">Received</div><div class="value">{{formatBytes .TotalBytes}}</div></div>
    </div>
    {{end}}

    {{if .Thresholds}}
    <div class="card">
        <h2>Thresholds</h2>
        <table>
            <tr><th></th><th>Metric</th><th>Expression</th><th>Observed</th></tr>
            {{range .Thresholds}}
            <tr>
                <td>{{if .Passed}}<span class="icon pass">&#10003;</span>{{else}}<span class="icon fail">&#10007;</span>{{end}}</td>
                <td class="mono">{{.Selector}}</td>
                <td class="mono">{{.Expression}}</td>
                <td>{{if .NoData}}<span class="muted">no data</span>{{else}}{{.Value}}{{end}}{{if .Message}}<br><span class="muted">{{.Message}}</span>{{end}}</td>
            </tr>
            {{end}}
        </table>
    </div>
    {{end}}

    <div class="card">
        <h2>Metrics</h2>
        <table>
            {{range .Rows}}
            <tr{{if .Submetric}} class="sub"{{end}}><td class="mono">{{.Name}}</td><td class="mono">{{.Values}}</td></tr>
            {{end}}
        </table>
    </div>

    {{if .Requests}}
    <div class="card">
        <h2>Requests</h2>
        <table>
            <tr><th>Name</th><th>Count</th><th>Min</th><th>Avg</th><th>Med</th><th>p95</th><th>p99</th><th>Max</th></tr>
            {{range .Requests}}
            <tr>
                <td class="mono">{{.Name}}</td>
                <td>{{formatNumber .Stats.Count}}</td>
                <td>{{formatLatency .Stats.Min}}</td>
                <td>{{formatLatency .Stats.Mean}}</td>
                <td>{{formatLatency .Stats.P50}}</td>
                <td>{{formatLatency .Stats.P95}}</td>
                <td>{{formatLatency .Stats.P99}}</td>
                <td>{{formatLatency .Stats.Max}}</td>
            </tr>
            {{end}}
        </table>
    </div>
    {{end}}

    <div class="card">
        <h2>Stages</h2>
        <table>
            <tr><th>Duration</th><th>Target VUs</th></tr>
            {{range $s := .Stages}}
            <tr><td>{{formatDuration $s.Duration}}</td><td>{{$s.Target}}</td></tr>
            {{end}}
        </table>
        {{if .Phases}}
        <p class="muted" style="margin-top: 1rem;">
            Phases: {{range $i, $p := .Phases}}{{if $i}} &rarr; {{end}}{{$p.Phase}}{{end}}
        </p>
        {{end}}
    </div>

    {{if .TimeSeries}}
    <div class="charts">
        <div class="card"><h2>Throughput</h2><canvas id="rpsChart"></canvas></div>
        <div class="card"><h2>Latency (ms)</h2><canvas id="latencyChart"></canvas></div>
        <div class="card"><h2>Virtual users</h2><canvas id="vusChart"></canvas></div>
        <div class="card"><h2>Failed requests (%)</h2><canvas id="errorChart"></canvas></div>
    </div>
    {{end}}

    <footer>Generated by restload &middot; {{.EndTime.Format "2006-01-02 15:04:05 MST"}}</footer>
</div>

<script>
    const timeSeriesData = {{.TimeSeriesJSON}};

    function line(id, datasets, extra) {
        const el = document.getElementById(id);
        if (!el) return;
        new Chart(el.getContext('2d'), {
            type: 'line',
            data: {
                labels: timeSeriesData.map(p => (p.elapsedMs / 1000).toFixed(0) + 's'),
                datasets: datasets.map(d => Object.assign({ tension: 0.3, pointRadius: 0, borderWidth: 2 }, d)),
            },
            options: Object.assign({ responsive: true, animation: false, interaction: { intersect: false, mode: 'index' } }, extra || {}),
        });
    }

    document.addEventListener('DOMContentLoaded', function () {
        if (!timeSeriesData || timeSeriesData.length === 0) return;
        line('rpsChart', [{ label: 'req/s', data: timeSeriesData.map(p => p.intervalRPS), borderColor: '#3b82f6' }]);
        line('latencyChart', [
            { label: 'p50', data: timeSeriesData.map(p => p.latencyP50), borderColor: '#22c55e' },
            { label: 'p95', data: timeSeriesData.map(p => p.latencyP95), borderColor: '#f59e0b' },
            { label: 'p99', data: timeSeriesData.map(p => p.latencyP99), borderColor: '#ef4444' },
        ]);
        line('vusChart', [{ label: 'VUs', data: timeSeriesData.map(p => p.activeVUs), borderColor: '#8b5cf6', stepped: true }]);
        line('errorChart', [{ label: 'failed %', data: timeSeriesData.map(p => p.intervalErrorRate * 100), borderColor: '#ef4444' }]);
    });
</script>
</body>
</html>`
