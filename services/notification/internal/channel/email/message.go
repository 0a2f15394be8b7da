package email

import (
	"html"
	"strings"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

var priorityColors = map[notifications.Priority]string{
	notifications.PriorityCritical: "#b71c1c",
	notifications.PriorityHigh:     "#e65100",
	notifications.PriorityNormal:   "#1565c0",
	notifications.PriorityLow:      "#546e7a",
}

// renderHTML renders the HTML alternative of a notification body.
func renderHTML(n *notifications.Notification) string {
	color, ok := priorityColors[n.Priority]
	if !ok {
		color = priorityColors[notifications.PriorityNormal]
	}

	var b strings.Builder
	b.WriteString(`<div style="font-family:sans-serif">`)
	b.WriteString(`<h2 style="color:` + color + `">` + html.EscapeString(n.Subject) + `</h2>`)
	for _, line := range strings.Split(n.Message, "\n") {
		if line == "" {
			continue
		}
		b.WriteString("<p>" + html.EscapeString(line) + "</p>")
	}
	b.WriteString("</div>")
	return b.String()
}
