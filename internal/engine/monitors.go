package engine

// MonitorInfo describes a connected display output.
type MonitorInfo struct {
	Index     int  `json:"index" yaml:"index"`
	Width     int  `json:"width" yaml:"width"`
	Height    int  `json:"height" yaml:"height"`
	X         int  `json:"x" yaml:"x"`
	Y         int  `json:"y" yaml:"y"`
	IsPrimary bool `json:"isPrimary" yaml:"isPrimary"`
}

// ListMonitors enumerates active displays. Index 0 is the primary display.
func ListMonitors() []MonitorInfo {
	return listMonitors(screenGrabber{})
}

// Monitors enumerates the displays this engine captures from.
func (s *Screen) Monitors() []MonitorInfo {
	return listMonitors(s.grab)
}

func listMonitors(g grabber) []MonitorInfo {
	n := g.NumDisplays()
	out := make([]MonitorInfo, 0, n)
	for i := 0; i < n; i++ {
		b := g.DisplayBounds(i)
		out = append(out, MonitorInfo{
			Index:     i,
			Width:     b.Dx(),
			Height:    b.Dy(),
			X:         b.Min.X,
			Y:         b.Min.Y,
			IsPrimary: i == 0,
		})
	}
	return out
}
