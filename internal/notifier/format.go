package notifier

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/newthinker/prism/internal/core"
)

// Headline is a one-line summary such as "AAPL BUY (score 78.75, 72% confidence)".
func Headline(r core.AnalysisResult) string {
	return fmt.Sprintf("%s %s (score %s, %s%% confidence)",
		r.Symbol, r.Recommendation,
		humanize.FtoaWithDigits(r.OverallScore, 2),
		humanize.FtoaWithDigits(math.Round(r.Confidence*100), 0),
	)
}

// Summary renders a result as plain multi-line text.
func Summary(r core.AnalysisResult) string {
	var sb strings.Builder
	sb.WriteString(Headline(r))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Risk: %s\n", r.RiskLevel)

	if r.Sentiment != nil {
		fmt.Fprintf(&sb, "Sentiment: %+.2f (%s, %s items)\n",
			r.Sentiment.OverallSentiment,
			r.Sentiment.TrendDirection,
			humanize.Comma(int64(r.Sentiment.NewsCount+r.Sentiment.SocialPostsCount)),
		)
	}
	if r.Conflict != nil {
		fmt.Fprintf(&sb, "Conflict: %s (severity %.2f)\n",
			strings.ReplaceAll(string(r.Conflict.Type), "_", " "), r.Conflict.Severity)
	}
	for _, h := range []core.Horizon{core.HorizonShort, core.HorizonMedium, core.HorizonLong} {
		if pt, ok := r.PriceTargets[h]; ok {
			fmt.Fprintf(&sb, "Target %s: %s (%+.1f%%)\n", h, humanize.CommafWithDigits(pt.Price, 2), pt.ExpectedReturn*100)
		}
	}
	writeList(&sb, "Strengths", r.Strengths)
	writeList(&sb, "Risks", r.Risks)
	if !r.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "Analyzed %s", r.Timestamp.UTC().Format("2006-01-02 15:04 MST"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// BatchSummary renders several results, strongest first.
func BatchSummary(results []core.AnalysisResult) string {
	sorted := make([]core.AnalysisResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OverallScore > sorted[j].OverallScore })

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", humanize.Comma(int64(len(results))), plural(len(results), "analysis", "analyses"))
	for _, r := range sorted {
		sb.WriteString("- ")
		sb.WriteString(Headline(r))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(title)
	sb.WriteString(":\n")
	for _, s := range items {
		sb.WriteString("  - ")
		sb.WriteString(s)
		sb.WriteString("\n")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
