// pkg/server/status.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"fmt"
	"net/http"
	"runtime"
	"text/template"
	"time"

	"github.com/mmp/airdispatch/pkg/math"
	"github.com/mmp/airdispatch/pkg/sim"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type serverStats struct {
	Uptime           time.Duration
	AllocMemory      uint64
	TotalAllocMemory uint64
	SysMemory        uint64
	HostMemoryUsed   float64
	NumGC            uint32
	NumGoRoutines    int
	CPUUsage         int

	Sim       sim.Snapshot
	InFlight  []sim.PlaneStatus
	Servicing []sim.PlaneStatus
}

func megabytes(v uint64) string {
	return fmt.Sprintf("%d MB", v/(1024*1024))
}

var templateFuncs = template.FuncMap{
	"mb":      megabytes,
	"percent": func(f float64) string { return fmt.Sprintf("%.0f%%", 100*f) },
	"point":   func(p math.Point2) string { return fmt.Sprintf("(%.2f, %.2f)", p[0], p[1]) },
}

var statsTemplate = template.Must(template.New("").Funcs(templateFuncs).Parse(`
<!DOCTYPE html>
<html>
<head>
<title>airdispatch</title>
<meta http-equiv="refresh" content="2">
</head>
<style>
table {
  border-collapse: collapse;
  width: 100%;
}

th, td {
  border: 1px solid #dddddd;
  padding: 8px;
  text-align: left;
}

tr:nth-child(even) {
  background-color: #f2f2f2;
}
</style>
<body>
<h1>Server Status</h1>
<ul>
  <li>Uptime: {{.Uptime}}</li>
  <li>CPU usage: {{.CPUUsage}}%</li>
  <li>Allocated memory: {{mb .AllocMemory}}</li>
  <li>Total allocated memory: {{mb .TotalAllocMemory}}</li>
  <li>System memory: {{mb .SysMemory}}</li>
  <li>Host memory used: {{printf "%.1f" .HostMemoryUsed}}%</li>
  <li>Garbage collection passes: {{.NumGC}}</li>
  <li>Running goroutines: {{.NumGoRoutines}}</li>
</ul>

<h1>Simulation Status</h1>
<ul>
  <li>State: {{.Sim.State}}</li>
  <li>Running for: {{.Sim.Uptime}}</li>
  <li>{{.Sim.Counters}}</li>
</ul>

<h2>Airports</h2>
<table>
  <tr>
  <th>Airport</th>
  <th>Position</th>
  <th>Waiting Requests</th>
  <th>Available Planes</th>
  </tr>
{{range $i, $ap := .Sim.Airports}}
  <tr>
  <td>{{$ap.Label}}</td>
  <td>{{point $ap.Position}}</td>
  {{with index $.Sim.Queues $i}}
  <td>{{.Requests}}</td>
  <td>{{.Available}}</td>
  {{end}}
  </tr>
{{end}}
</table>

<h2>In Flight</h2>
<table>
  <tr>
  <th>Plane</th>
  <th>Route</th>
  <th>Position</th>
  <th>Heading</th>
  <th>Progress</th>
  </tr>
{{range .InFlight}}
  <tr>
  <td>{{.Label}}</td>
  <td>AP {{.Origin}} &rarr; AP {{.Dest}}</td>
  <td>{{point .Position}}</td>
  <td>{{printf "%.0f" .Heading}}</td>
  <td>{{percent .Progress}}</td>
  </tr>
{{end}}
</table>

<h2>Servicing</h2>
<table>
  <tr>
  <th>Plane</th>
  <th>Airport</th>
  </tr>
{{range .Servicing}}
  <tr>
  <td>{{.Label}}</td>
  <td>AP {{.Airport}}</td>
  </tr>
{{end}}
</table>

</body>
</html>
`))

func (srv *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := serverStats{
		Uptime:           time.Since(srv.startTime).Round(time.Second),
		AllocMemory:      m.Alloc,
		TotalAllocMemory: m.TotalAlloc,
		SysMemory:        m.Sys,
		NumGC:            m.NumGC,
		NumGoRoutines:    runtime.NumGoroutine(),
		Sim:              srv.snapshot(),
	}
	// With a zero interval, usage is measured since the previous call.
	if usage, err := cpu.Percent(0, false); err == nil && len(usage) > 0 {
		stats.CPUUsage = int(usage[0] + 0.5)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.HostMemoryUsed = vm.UsedPercent
	}

	for _, ps := range stats.Sim.Planes {
		switch ps.State {
		case sim.InFlight:
			stats.InFlight = append(stats.InFlight, ps)
		case sim.Servicing:
			stats.Servicing = append(stats.Servicing, ps)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statsTemplate.Execute(w, stats); err != nil {
		srv.lg.Errorf("unable to execute status template: %v", err)
	}
}
