// Package notify renders alert digests for delivery transports.
package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// FormatDigest renders pending alerts as one HTML message, grouped by tier
// with critical first. Alert order within a tier is preserved.
func FormatDigest(alerts []monitor.Alert, now time.Time) string {
	var critical, high, standard []monitor.Alert
	for _, a := range alerts {
		switch a.Tier {
		case monitor.TierCritical:
			critical = append(critical, a)
		case monitor.TierHigh:
			high = append(high, a)
		default:
			standard = append(standard, a)
		}
	}

	var b strings.Builder
	b.WriteString("<b>Parliament Monitor Alert</b>\n")
	fmt.Fprintf(&b, "%d critical, %d high priority, %d standard\n", len(critical), len(high), len(standard))
	fmt.Fprintf(&b, "Generated: %s\n", now.Format("2006-01-02 15:04"))

	writeSection(&b, "🚨 CRITICAL ALERTS", critical)
	writeSection(&b, "⚠️ HIGH PRIORITY", high)
	writeSection(&b, "📋 STANDARD UPDATES", standard)

	return b.String()
}

func writeSection(b *strings.Builder, heading string, alerts []monitor.Alert) {
	if len(alerts) == 0 {
		return
	}
	b.WriteString("\n<b>")
	b.WriteString(heading)
	b.WriteString("</b>\n")
	for _, a := range alerts {
		b.WriteString("• ")
		b.WriteString(html.EscapeString(a.Title))
		if a.Description != "" {
			b.WriteString(" - ")
			b.WriteString(html.EscapeString(a.Description))
		}
		if a.Keywords != "" {
			fmt.Fprintf(b, " <i>(%s)</i>", html.EscapeString(a.Keywords))
		}
		b.WriteString("\n")
	}
}
