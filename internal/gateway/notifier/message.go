package notifier

import (
	"fmt"
	"strings"
	"time"
)

// Telegram 单条消息上限 4096，预留页脚与时间戳。
const maxMessageLen = 3800

// MessageSection 是报告中的一个分区，如无效证券或执行结果。
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage 描述一条批次报告推送。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 输出 Markdown：标题、代码块内的分区、页脚与时间。
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString("*" + escapeMarkdown(header) + "*\n\n")
	}
	if block := renderSections(m.Sections); block != "" {
		b.WriteString("```\n")
		b.WriteString(block)
		b.WriteString("```\n\n")
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(escapeMarkdown(footer) + "\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return truncate(strings.TrimSpace(b.String()), maxMessageLen)
}

func renderSections(secs []MessageSection) string {
	blocks := make([]string, 0, len(secs))
	for _, sec := range secs {
		lines := nonEmpty(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		var b strings.Builder
		if title := strings.TrimSpace(sec.Title); title != "" {
			fmt.Fprintf(&b, "%s (%d)\n", stripFence(title), len(lines))
		}
		for _, line := range lines {
			b.WriteString("- " + stripFence(line) + "\n")
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// 代码块内只需避免提前闭合。
func stripFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// 按字节截断时回退到完整的 UTF-8 字符边界。
	cut := limit
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
