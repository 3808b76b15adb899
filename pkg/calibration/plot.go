package calibration

import (
	"fmt"
	"io"
	"math"

	"github.com/fogleman/gg"
)

const (
	plotW      = 640
	plotH      = 480
	plotMargin = 50
)

// Plot draws the samples and the fitted line as a PNG.
func Plot(w io.Writer, samples []Sample, r Result) error {
	dc := render(samples, r)
	return dc.EncodePNG(w)
}

func SavePlot(path string, samples []Sample, r Result) error {
	return render(samples, r).SavePNG(path)
}

func render(samples []Sample, r Result) *gg.Context {
	maxSpeed := r.Model.SpeedAt(1)
	for _, s := range samples {
		maxSpeed = math.Max(maxSpeed, s.SpeedCMPerSec)
	}
	if maxSpeed <= 0 {
		maxSpeed = 1
	}
	maxSpeed *= 1.1

	toX := func(duty float64) float64 {
		return plotMargin + duty*(plotW-2*plotMargin)
	}
	toY := func(speed float64) float64 {
		return plotH - plotMargin - speed/maxSpeed*(plotH-2*plotMargin)
	}

	dc := gg.NewContext(plotW, plotH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Axes.
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(toX(0), toY(0), toX(1), toY(0))
	dc.DrawLine(toX(0), toY(0), toX(0), toY(maxSpeed))
	dc.Stroke()
	for i := 0; i <= 10; i++ {
		d := float64(i) / 10
		dc.DrawStringAnchored(fmt.Sprintf("%.1f", d), toX(d), toY(0)+14, 0.5, 0.5)
	}
	dc.DrawStringAnchored("duty", toX(0.5), plotH-12, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.0f cm/s", maxSpeed), toX(0)+4, toY(maxSpeed), 0, 0.5)

	// Samples.
	dc.SetRGB(0.1, 0.3, 0.9)
	for _, s := range samples {
		dc.DrawCircle(toX(s.Duty), toY(s.SpeedCMPerSec), 4)
		dc.Fill()
	}

	// Fit.
	dc.SetRGB(0.9, 0.2, 0)
	dc.SetLineWidth(2)
	dc.DrawLine(toX(0), toY(r.Model.SpeedAt(0)), toX(1), toY(r.Model.SpeedAt(1)))
	dc.Stroke()
	dc.DrawStringAnchored(r.String(), plotW/2, plotMargin/2, 0.5, 0.5)
	return dc
}
