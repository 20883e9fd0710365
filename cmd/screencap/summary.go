package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/capture/internal/framewriter"
	"github.com/breeze-rmm/capture/pkg/capture"
)

// runSummary is printed when a capture command finishes.
type runSummary struct {
	FramesDelivered uint64             `yaml:"framesDelivered"`
	FramesEmpty     uint64             `yaml:"framesEmpty,omitempty"`
	HandlerErrors   uint64             `yaml:"handlerErrors,omitempty"`
	AvgDispatchMs   float64            `yaml:"avgDispatchMs"`
	MaxDispatchMs   float64            `yaml:"maxDispatchMs"`
	DeliveredFPS    float64            `yaml:"deliveredFps"`
	Uptime          string             `yaml:"uptime"`
	Saved           *framewriter.Stats `yaml:"saved,omitempty"`
	RSSBytes        uint64             `yaml:"rssBytes,omitempty"`
	CPUPercent      float64            `yaml:"cpuPercent,omitempty"`
}

func summaryFor(m capture.MetricsSnapshot, saved framewriter.Stats) runSummary {
	s := newSummary(m)
	s.Saved = &saved
	return s
}

func newSummary(m capture.MetricsSnapshot) runSummary {
	s := runSummary{
		FramesDelivered: m.FramesDelivered,
		FramesEmpty:     m.FramesEmpty,
		HandlerErrors:   m.HandlerErrors,
		AvgDispatchMs:   m.AvgDispatchMs,
		MaxDispatchMs:   m.MaxDispatchMs,
		DeliveredFPS:    m.DeliveredFPS,
		Uptime:          m.Uptime.Round(time.Millisecond).String(),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfo(); err == nil {
			s.RSSBytes = mem.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			s.CPUPercent = cpu
		}
	}
	return s
}

func printSummary(w io.Writer, s runSummary) {
	out, err := yaml.Marshal(s)
	if err != nil {
		log.Warn("summary marshal failed", "error", err)
		return
	}
	fmt.Fprint(w, string(out))
}
