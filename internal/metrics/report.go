package metrics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// WriteText writes a human-readable summary of the report.
func (r *Report) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	rule := strings.Repeat("=", 80)
	o := r.Overview

	fmt.Fprintf(bw, "%s\nChat usage report\n%s\n", rule, rule)

	fmt.Fprintf(bw, "\n[Overview]\n")
	fmt.Fprintf(bw, "  Conversations: %d\n", o.TotalConversations)
	fmt.Fprintf(bw, "  Messages: %d\n", o.TotalMessages)
	fmt.Fprintf(bw, "  Edges: %d\n", o.TotalEdges)
	fmt.Fprintf(bw, "  Date span: %d days\n", o.DateSpanDays)

	fmt.Fprintf(bw, "\n[Conversation length]\n")
	fmt.Fprintf(bw, "  Average: %.1f\n", r.Lengths.Average)
	fmt.Fprintf(bw, "  Median: %.1f\n", r.Lengths.Median)
	fmt.Fprintf(bw, "  Max: %d\n", r.Lengths.Max)
	fmt.Fprintf(bw, "  Min: %d\n", r.Lengths.Min)
	fmt.Fprintf(bw, "  Complex (> %d messages): %d (%.1f%%)\n", r.Lengths.Threshold, r.Lengths.Complex, r.Lengths.ComplexPercentage)

	fmt.Fprintf(bw, "\n[Roles]\n")
	for _, c := range r.Roles.Distribution {
		fmt.Fprintf(bw, "  %s: %d (%.1f%%)\n", c.Key, c.Count, percent(c.Count, o.TotalMessages))
	}
	fmt.Fprintf(bw, "  User/Assistant ratio: %.2f\n", r.Roles.UserAssistantRatio)

	fmt.Fprintf(bw, "\n[Content types]\n")
	for _, c := range top(r.ContentTypes, 5) {
		fmt.Fprintf(bw, "  %s: %d (%.1f%%)\n", c.Key, c.Count, percent(c.Count, o.TotalMessages))
	}

	fmt.Fprintf(bw, "\n[Content flags]\n")
	fmt.Fprintf(bw, "  Code: %d (%.1f%%)\n", r.Flags.Code, r.Flags.CodePercentage)
	fmt.Fprintf(bw, "  Image: %d (%.1f%%)\n", r.Flags.Image, r.Flags.ImagePercentage)
	fmt.Fprintf(bw, "  Link: %d (%.1f%%)\n", r.Flags.Link, r.Flags.LinkPercentage)

	fmt.Fprintf(bw, "\n[Branching]\n")
	fmt.Fprintf(bw, "  Branching nodes: %d (%.1f%%)\n", r.Branching.Nodes, r.Branching.Percentage)
	fmt.Fprintf(bw, "  Max children: %d\n", r.Branching.MaxChildren)
	fmt.Fprintf(bw, "  Avg children: %.2f\n", r.Branching.AvgChildren)

	if r.Depth.Sampled > 0 {
		fmt.Fprintf(bw, "\n[Depth, first %d conversations]\n", r.Depth.Sampled)
		fmt.Fprintf(bw, "  Average: %.1f\n", r.Depth.Average)
		fmt.Fprintf(bw, "  Max: %d\n", r.Depth.Max)
		fmt.Fprintf(bw, "  Median: %.1f\n", r.Depth.Median)
	}

	fmt.Fprintf(bw, "\n[Time]\n")
	fmt.Fprintf(bw, "  Daily avg conversations: %.1f\n", o.DailyAvgConversations)
	fmt.Fprintf(bw, "  Daily avg messages: %.1f\n", o.DailyAvgMessages)
	if r.Time.MostActiveHour != nil {
		fmt.Fprintf(bw, "  Most active hour: %d:00\n", *r.Time.MostActiveHour)
		fmt.Fprintf(bw, "  Least active hour: %d:00\n", *r.Time.LeastActiveHour)
	}

	fmt.Fprintf(bw, "\n[Tools]\n")
	fmt.Fprintf(bw, "  Tool messages: %d (%.1f%%)\n", r.Tools.Messages, r.Tools.Percentage)

	if len(r.Models.Distribution) > 0 {
		fmt.Fprintf(bw, "\n[Models]\n")
		fmt.Fprintf(bw, "  Most used: %s\n", r.Models.MostUsed)
		for _, c := range top(r.Models.Distribution, 3) {
			fmt.Fprintf(bw, "  %s: %d\n", c.Key, c.Count)
		}
	}

	ct := r.ConversationTypes
	fmt.Fprintf(bw, "\n[Conversation types]\n")
	fmt.Fprintf(bw, "  Technical: %d (%.1f%%)\n", ct.Technical.Count, ct.Technical.Percentage)
	fmt.Fprintf(bw, "  Business: %d (%.1f%%)\n", ct.Business.Count, ct.Business.Percentage)
	fmt.Fprintf(bw, "  Creative: %d (%.1f%%)\n", ct.Creative.Count, ct.Creative.Percentage)

	fmt.Fprintf(bw, "\n%s\n", rule)
	return bw.Flush()
}

func top(counts []Count, n int) []Count {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}
