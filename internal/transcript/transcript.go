package transcript

import (
	"strings"
)

type Section struct {
	ChannelID   string
	ChannelName string
	Recent      []string
	Older       []string
}

// Transcript holds one section per summarized channel, in configuration order.
type Transcript struct {
	Sections []Section
}

func (t Transcript) RecentText() string {
	return t.render(func(section Section) []string { return section.Recent })
}

func (t Transcript) ContextText() string {
	return t.render(func(section Section) []string { return section.Older })
}

func (t Transcript) RecentCount() int {
	total := 0
	for _, section := range t.Sections {
		total += len(section.Recent)
	}
	return total
}

func (t Transcript) OlderCount() int {
	total := 0
	for _, section := range t.Sections {
		total += len(section.Older)
	}
	return total
}

func (t Transcript) render(pick func(Section) []string) string {
	var builder strings.Builder
	for i, section := range t.Sections {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		name := strings.TrimSpace(section.ChannelName)
		if name == "" {
			name = section.ChannelID
		}
		builder.WriteString("#")
		builder.WriteString(name)
		builder.WriteString(" :\n")
		builder.WriteString(strings.Join(pick(section), "\n\n"))
	}
	return builder.String()
}
