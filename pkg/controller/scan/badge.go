package scan

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/suzuki-shunsuke/logrus-error/logerr"

	"github.com/asura-sec/asura/pkg/finding"
)

const badgeFileName = "security_badge.svg"

// Shields.io flat style colors per grade.
var badgeColors = map[string]string{
	"A": "#4c1",
	"B": "#97ca00",
	"C": "#dfb317",
	"D": "#fe7d37",
	"E": "#e05d44",
	"F": "#e05d44",
}

const badgeTemplate = `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="90" height="20" role="img" aria-label="security: %[1]s">
    <title>security: %[1]s</title>
    <linearGradient id="s" x2="0" y2="100%%">
        <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
        <stop offset="1" stop-opacity=".1"/>
    </linearGradient>
    <clipPath id="r">
        <rect width="90" height="20" rx="3" fill="#fff"/>
    </clipPath>
    <g clip-path="url(#r)">
        <rect width="55" height="20" fill="#555"/>
        <rect x="55" width="35" height="20" fill="%[3]s"/>
        <rect width="90" height="20" fill="url(#s)"/>
    </g>
    <g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,DejaVu Sans,sans-serif" text-rendering="geometricPrecision" font-size="110">
        <text aria-hidden="true" x="285" y="150" fill="#010101" fill-opacity=".3" transform="scale(.1)" textLength="450">security</text>
        <text x="285" y="140" transform="scale(.1)" fill="#fff" textLength="450">security</text>
        <text aria-hidden="true" x="715" y="150" fill="#010101" fill-opacity=".3" transform="scale(.1)" textLength="250">%[1]s (%[2]d)</text>
        <text x="715" y="140" transform="scale(.1)" fill="#fff" textLength="250">%[1]s (%[2]d)</text>
    </g>
</svg>`

func renderBadge(score int, grade string) string {
	color, ok := badgeColors[grade]
	if !ok {
		color = "#9f9f9f"
	}
	return fmt.Sprintf(badgeTemplate, grade, score, color)
}

// writeBadge drops the badge next to the scanned project. A failed write is
// logged and the run carries on; the badge is a side effect, never a gate.
func (c *Controller) writeBadge(logE *logrus.Entry, result *finding.ScanResult) {
	p := filepath.Join(c.param.Root, badgeFileName)
	svg := renderBadge(int(result.HealthScore), result.Grade)
	if err := afero.WriteFile(c.fs, p, []byte(svg), 0o644); err != nil {
		logerr.WithError(logE, err).Warn("write the badge")
		return
	}
	c.progress.append("Badge written: " + p)
}
