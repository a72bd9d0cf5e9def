package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// AlertDigest is one notification: the active alerts and, when it could be
// read, the board they were evaluated against.
type AlertDigest struct {
	Alerts []Alert
	Board  *models.Board
}

// Notifier delivers alert digests outside the process.
type Notifier interface {
	Notify(digest AlertDigest) error
}

type slackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier posting to a Slack incoming webhook.
func NewSlackNotifier(webhookURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts the digest as a single message. No request is made when the
// digest holds no alerts.
func (s *slackNotifier) Notify(digest AlertDigest) error {
	if len(digest.Alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(buildSlackMessage(digest))
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// conditionTitles orders and names the sections of a digest. Conditions
// not listed follow in name order under their raw name.
var conditionTitles = []struct {
	condition string
	title     string
}{
	{"counter_drift", "Board counters out of step"},
	{"task_error", "Tasks in Error"},
	{"task_pending_too_long", "Tasks waiting too long"},
	{"backlog_too_large", "Backlog"},
	{"generation_unavailable", "Text generation"},
}

// buildSlackMessage renders a header, a context line with the board
// counters, and one section per alert condition listing its alerts.
func buildSlackMessage(digest AlertDigest) slackMessage {
	summary := fmt.Sprintf("Agent Factory: %d alert(s)", len(digest.Alerts))
	msg := slackMessage{
		Text:   summary,
		Blocks: []slackBlock{{Type: "header", Text: &slackText{Type: "plain_text", Text: summary}}},
	}
	if digest.Board != nil {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: boardLine(digest.Board)}},
		})
	}

	for _, g := range groupByCondition(digest.Alerts) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s *%s* `%s`", severityEmoji(g.severity), g.title, g.condition)
		for _, a := range g.alerts {
			sb.WriteString("\n• ")
			if a.Task != "" {
				fmt.Fprintf(&sb, "*%s*: ", a.Task)
			}
			sb.WriteString(a.Message)
		}
		msg.Blocks = append(msg.Blocks,
			slackBlock{Type: "divider"},
			slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: sb.String()}},
		)
	}

	triggered := digest.Alerts[0].TriggeredAt.UTC().Format("2006-01-02 15:04 UTC")
	msg.Blocks = append(msg.Blocks, slackBlock{
		Type:     "context",
		Elements: []slackText{{Type: "mrkdwn", Text: "Evaluated " + triggered + ". Run `factory alerts` for details."}},
	})
	return msg
}

func boardLine(b *models.Board) string {
	line := fmt.Sprintf("Total *%d*  |  Completed *%d*  |  Pending *%d*  |  Errors *%d*",
		b.Counters.Total, b.Counters.Completed, b.Counters.Pending, b.Counters.Errors)
	if b.LastUpdated != "" {
		line += "  |  updated " + b.LastUpdated
	}
	return line
}

type alertGroup struct {
	condition string
	title     string
	severity  AlertSeverity
	alerts    []Alert
}

// groupByCondition collects alerts per condition. A group takes the most
// severe level among its alerts.
func groupByCondition(alerts []Alert) []alertGroup {
	byCondition := make(map[string]*alertGroup)
	for _, a := range alerts {
		g, ok := byCondition[a.Condition]
		if !ok {
			g = &alertGroup{condition: a.Condition, title: a.Condition, severity: a.Severity}
			byCondition[a.Condition] = g
		}
		if severityRank(a.Severity) > severityRank(g.severity) {
			g.severity = a.Severity
		}
		g.alerts = append(g.alerts, a)
	}

	var groups []alertGroup
	for _, ct := range conditionTitles {
		if g, ok := byCondition[ct.condition]; ok {
			g.title = ct.title
			groups = append(groups, *g)
			delete(byCondition, ct.condition)
		}
	}
	var rest []string
	for c := range byCondition {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	for _, c := range rest {
		groups = append(groups, *byCondition[c])
	}
	return groups
}

func severityRank(s AlertSeverity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "❓"
	}
}
