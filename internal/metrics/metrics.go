// Package metrics computes the descriptive usage report over the flattened relations.
//
// All timestamps are bucketed in UTC. Messages without a create time are
// counted in totals but ignored by every time-based statistic.
package metrics

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/chatinsight/chat-insight/internal/depth"
	"github.com/chatinsight/chat-insight/internal/types"
)

// ComplexThreshold is the message count above which a conversation is complex.
const ComplexThreshold = 20

var businessKeywords = []string{"ppt", "邮件", "周报", "报告", "演示", "presentation", "email", "report"}

// Count is one entry of a frequency table.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Report is the full statistics report.
type Report struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	Overview          Overview          `json:"overview"`
	Lengths           LengthStats       `json:"conversation_length"`
	Roles             RoleStats         `json:"roles"`
	ContentTypes      []Count           `json:"content_types"`
	Flags             FlagStats         `json:"flags"`
	Branching         BranchingStats    `json:"branching"`
	Depth             DepthStats        `json:"depth"`
	Time              TimeStats         `json:"time_patterns"`
	Tools             ToolStats         `json:"tools"`
	Models            ModelStats        `json:"models"`
	ConversationTypes ConversationTypes `json:"conversation_types"`
}

// Overview holds the headline totals.
type Overview struct {
	TotalConversations    int        `json:"total_conversations"`
	TotalMessages         int        `json:"total_messages"`
	TotalEdges            int        `json:"total_edges"`
	FirstMessage          *time.Time `json:"first_message,omitempty"`
	LastMessage           *time.Time `json:"last_message,omitempty"`
	DateSpanDays          int        `json:"date_span_days"`
	DailyAvgConversations float64    `json:"daily_avg_conversations"`
	DailyAvgMessages      float64    `json:"daily_avg_messages"`
}

// LengthStats describes messages per conversation.
type LengthStats struct {
	Average           float64 `json:"average"`
	Median            float64 `json:"median"`
	Max               int     `json:"max"`
	Min               int     `json:"min"`
	Complex           int     `json:"complex_conversations"`
	ComplexPercentage float64 `json:"complex_percentage"`
	Threshold         int     `json:"threshold"`
}

// RoleStats holds the author role distribution.
type RoleStats struct {
	Distribution       []Count `json:"distribution"`
	UserAssistantRatio float64 `json:"user_assistant_ratio"`
}

// FlagStats counts messages by heuristic content flag.
type FlagStats struct {
	Code            int     `json:"messages_with_code"`
	Image           int     `json:"messages_with_image"`
	Link            int     `json:"messages_with_link"`
	CodePercentage  float64 `json:"code_percentage"`
	ImagePercentage float64 `json:"image_percentage"`
	LinkPercentage  float64 `json:"link_percentage"`
}

// BranchingStats describes nodes with more than one child.
type BranchingStats struct {
	Nodes       int     `json:"branching_nodes"`
	Percentage  float64 `json:"branching_percentage"`
	MaxChildren int     `json:"max_children"`
	AvgChildren float64 `json:"avg_children"`
}

// DepthStats summarises tree depth over the sampled conversations.
type DepthStats struct {
	Sampled int     `json:"sampled"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Max     int     `json:"max"`
}

// TimeStats holds the time-of-use patterns.
type TimeStats struct {
	Hourly          [24]int        `json:"hourly_distribution"`
	MostActiveHour  *int           `json:"most_active_hour"`
	LeastActiveHour *int           `json:"least_active_hour"`
	Weekdays        []Count        `json:"weekly_pattern"`
	Monthly         []MonthlyCount `json:"monthly_trend"`
}

// MonthlyCount is activity within one calendar month (YYYY-MM).
type MonthlyCount struct {
	Month         string `json:"month"`
	Conversations int    `json:"conversations"`
	Messages      int    `json:"messages"`
}

// ToolStats counts messages authored by tools.
type ToolStats struct {
	Messages      int     `json:"messages"`
	Conversations int     `json:"conversations"`
	Percentage    float64 `json:"percentage"`
}

// ModelStats holds the model distribution read from message metadata.
type ModelStats struct {
	Distribution []Count `json:"distribution"`
	MostUsed     string  `json:"most_used,omitempty"`
}

// TypeShare is a conversation category size.
type TypeShare struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ConversationTypes are overlapping conversation categories.
type ConversationTypes struct {
	Technical TypeShare `json:"technical"`
	Business  TypeShare `json:"business"`
	Creative  TypeShare `json:"creative"`
}

// Options tunes the computation.
type Options struct {
	// DepthSample caps the number of conversations walked for depth; <= 0 means all.
	DepthSample int
	Now         func() time.Time
}

type convAgg struct {
	messages int
	title    string
	hasCode  bool
	hasImage bool
	hasTool  bool
	hasMulti bool
}

// Compute builds the report for rel.
func Compute(rel *types.Relations, opts Options) *Report {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	ids := rel.ConversationIDs()
	total := len(rel.Messages)

	r := &Report{GeneratedAt: now()}
	r.Overview.TotalConversations = len(ids)
	r.Overview.TotalMessages = total
	r.Overview.TotalEdges = len(rel.Edges)

	convs := make(map[string]*convAgg, len(ids))
	roles := map[string]int{}
	contentTypes := map[string]int{}
	models := map[string]int{}
	weekdays := map[time.Weekday]int{}
	dayMessages := map[string]int{}
	dayConvs := map[string]map[string]struct{}{}
	monthMessages := map[string]int{}
	monthConvs := map[string]map[string]struct{}{}
	var first, last time.Time
	var seenTime bool
	childrenTotal := 0

	for i := range rel.Messages {
		m := &rel.Messages[i]
		c, ok := convs[m.ConversationID]
		if !ok {
			c = &convAgg{title: m.ConversationTitle}
			convs[m.ConversationID] = c
		}
		c.messages++

		if m.Role != nil {
			roles[*m.Role]++
			if *m.Role == "tool" {
				r.Tools.Messages++
				c.hasTool = true
			}
		}
		if m.ContentType != nil {
			contentTypes[*m.ContentType]++
			if *m.ContentType == "multimodal_text" {
				c.hasMulti = true
			}
		}
		if m.HasCode {
			r.Flags.Code++
			c.hasCode = true
		}
		if m.HasImage {
			r.Flags.Image++
			c.hasImage = true
		}
		if m.HasLink {
			r.Flags.Link++
		}

		n := len(m.ChildrenIDs)
		childrenTotal += n
		if n > 1 {
			r.Branching.Nodes++
		}
		if n > r.Branching.MaxChildren {
			r.Branching.MaxChildren = n
		}

		if slug := modelSlug(m.MetadataRaw); slug != "" {
			models[slug]++
		}

		if m.CreateTime == nil {
			continue
		}
		ts := timestamp(*m.CreateTime)
		if !seenTime || ts.Before(first) {
			first = ts
		}
		if !seenTime || ts.After(last) {
			last = ts
		}
		seenTime = true

		r.Time.Hourly[ts.Hour()]++
		weekdays[ts.Weekday()]++
		day := ts.Format(time.DateOnly)
		dayMessages[day]++
		addToSet(dayConvs, day, m.ConversationID)
		month := ts.Format("2006-01")
		monthMessages[month]++
		addToSet(monthConvs, month, m.ConversationID)
	}

	if seenTime {
		r.Overview.FirstMessage = &first
		r.Overview.LastMessage = &last
		r.Overview.DateSpanDays = int(last.Sub(first) / (24 * time.Hour))
	}
	if len(dayMessages) > 0 {
		convDays := 0
		for _, set := range dayConvs {
			convDays += len(set)
		}
		r.Overview.DailyAvgConversations = float64(convDays) / float64(len(dayConvs))
		r.Overview.DailyAvgMessages = float64(sumValues(dayMessages)) / float64(len(dayMessages))
	}

	lengths := make([]int, 0, len(ids))
	for _, id := range ids {
		lengths = append(lengths, convs[id].messages)
	}
	r.Lengths = lengthStats(lengths)

	r.Roles.Distribution = sortedCounts(roles)
	denom := roles["assistant"]
	if denom == 0 {
		denom = 1
	}
	r.Roles.UserAssistantRatio = float64(roles["user"]) / float64(denom)

	r.ContentTypes = sortedCounts(contentTypes)

	r.Flags.CodePercentage = percent(r.Flags.Code, total)
	r.Flags.ImagePercentage = percent(r.Flags.Image, total)
	r.Flags.LinkPercentage = percent(r.Flags.Link, total)

	r.Branching.Percentage = percent(r.Branching.Nodes, total)
	if total > 0 {
		r.Branching.AvgChildren = float64(childrenTotal) / float64(total)
	}

	r.Depth = depthStats(depth.Sample(rel, opts.DepthSample))

	r.Time.MostActiveHour, r.Time.LeastActiveHour = activeHours(r.Time.Hourly)
	for d := time.Monday; ; d = (d + 1) % 7 {
		if n := weekdays[d]; n > 0 {
			r.Time.Weekdays = append(r.Time.Weekdays, Count{Key: d.String(), Count: n})
		}
		if d == time.Sunday {
			break
		}
	}
	months := make([]string, 0, len(monthMessages))
	for m := range monthMessages {
		months = append(months, m)
	}
	sort.Strings(months)
	for _, m := range months {
		r.Time.Monthly = append(r.Time.Monthly, MonthlyCount{
			Month:         m,
			Conversations: len(monthConvs[m]),
			Messages:      monthMessages[m],
		})
	}

	r.Tools.Percentage = percent(r.Tools.Messages, total)

	r.Models.Distribution = sortedCounts(models)
	if len(r.Models.Distribution) > 0 {
		r.Models.MostUsed = r.Models.Distribution[0].Key
	}

	var technical, business, creative int
	for _, id := range ids {
		c := convs[id]
		if c.hasTool {
			r.Tools.Conversations++
		}
		if c.hasCode || c.hasTool || c.messages > ComplexThreshold {
			technical++
		}
		if c.hasImage || c.hasMulti {
			creative++
		}
		if isBusinessTitle(c.title) {
			business++
		}
	}
	r.ConversationTypes = ConversationTypes{
		Technical: share(technical, len(ids)),
		Business:  share(business, len(ids)),
		Creative:  share(creative, len(ids)),
	}

	return r
}

func timestamp(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second))).UTC()
}

// modelSlug returns metadata.model_slug, else metadata.default_model_slug.
func modelSlug(raw *string) string {
	if raw == nil {
		return ""
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*raw), &meta); err != nil {
		return ""
	}
	for _, key := range []string{"model_slug", "default_model_slug"} {
		v, ok := meta[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s
		}
		return ""
	}
	return ""
}

func isBusinessTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range businessKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func lengthStats(lengths []int) LengthStats {
	s := LengthStats{Threshold: ComplexThreshold}
	if len(lengths) == 0 {
		return s
	}
	s.Min = lengths[0]
	sum := 0
	for _, n := range lengths {
		sum += n
		s.Max = max(s.Max, n)
		s.Min = min(s.Min, n)
		if n > ComplexThreshold {
			s.Complex++
		}
	}
	s.Average = float64(sum) / float64(len(lengths))
	s.Median = median(lengths)
	s.ComplexPercentage = percent(s.Complex, len(lengths))
	return s
}

func depthStats(sample []depth.ConversationDepth) DepthStats {
	s := DepthStats{Sampled: len(sample)}
	if len(sample) == 0 {
		return s
	}
	values := make([]int, len(sample))
	sum := 0
	for i, d := range sample {
		values[i] = d.Depth
		sum += d.Depth
		s.Max = max(s.Max, d.Depth)
	}
	s.Average = float64(sum) / float64(len(values))
	s.Median = median(values)
	return s
}

func activeHours(hourly [24]int) (most, least *int) {
	for h, n := range hourly {
		h := h
		if n == 0 {
			continue
		}
		if most == nil || n > hourly[*most] {
			most = &h
		}
		if least == nil || n < hourly[*least] {
			least = &h
		}
	}
	return most, least
}

func median(values []int) float64 {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func share(n, total int) TypeShare {
	return TypeShare{Count: n, Percentage: percent(n, total)}
}

func addToSet(sets map[string]map[string]struct{}, key, member string) {
	set, ok := sets[key]
	if !ok {
		set = make(map[string]struct{})
		sets[key] = set
	}
	set[member] = struct{}{}
}

func sumValues(m map[string]int) int {
	sum := 0
	for _, v := range m {
		sum += v
	}
	return sum
}
