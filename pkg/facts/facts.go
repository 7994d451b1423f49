// Package facts extracts atomic fact records from free-form daily log
// markdown and uploads them to the vector store. This pipeline is fully
// independent of the turn-based promotion path: both may ingest the same
// underlying conversation, which is accepted redundancy.
package facts

import (
	"regexp"
	"strings"

	"github.com/openclaw/memtier/pkg/mem"
)

// Source names this producer in stored payloads.
const Source = "fact-extraction"

// Fact is one atomic fragment extracted from a daily log.
type Fact struct {
	Text       string
	Tags       []string
	Importance mem.Importance
	SourceType mem.SourceType
	Category   string
}

// tagVocabulary maps content keywords to tags. Scanned case-insensitively
// against each fragment.
var tagVocabulary = map[string]string{
	"preference": "preferences",
	"config":     "configuration",
	"hardware":   "hardware",
	"security":   "security",
	"youtube":    "youtube",
	"video":      "video",
	"workflow":   "workflow",
	"rule":       "rules",
	"critical":   "critical",
	"decision":   "decisions",
	"research":   "research",
	"process":    "process",
	"step":       "steps",
}

var (
	numberedRe      = regexp.MustCompile(`^\d+\.\s`)
	numberedStripRe = regexp.MustCompile(`^\d+\.\s*`)
	urlRe           = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)
)

// extractTags scans a fragment for the keyword vocabulary and always
// includes the atomic-fact marker and the source date.
func extractTags(text, date string) []string {
	tags := []string{"atomic-fact", date}
	lower := strings.ToLower(text)
	// Deterministic order so repeated extraction yields identical payloads.
	for _, keyword := range []string{
		"preference", "config", "hardware", "security", "youtube", "video",
		"workflow", "rule", "critical", "decision", "research", "process", "step",
	} {
		if strings.Contains(lower, keyword) {
			tags = append(tags, tagVocabulary[keyword])
		}
	}
	return tags
}

func boldImportance(text string) mem.Importance {
	if strings.Contains(text, "**") {
		return mem.ImportanceHigh
	}
	return mem.ImportanceMedium
}

// extractor carries the line-classifier state for a single document.
type extractor struct {
	date    string
	section string
	pending []string
	facts   []Fact
}

// Extract parses one day's markdown log into atomic facts. Each line is
// classified by exactly one rule, first match wins; unmatched prose
// accumulates and is flushed at section boundaries, blank lines and code
// fences.
func Extract(content, date string) []Fact {
	e := &extractor{date: date, section: "General"}

	lines := strings.Split(content, "\n")
	inCode := false
	var codeLines []string
	codeLang := ""

	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, "```") {
			if inCode {
				e.emitCode(codeLines, codeLang)
				codeLines = nil
				codeLang = ""
				inCode = false
			} else {
				e.flush()
				inCode = true
				codeLang = strings.TrimSpace(line[3:])
				if codeLang == "" {
					codeLang = "text"
				}
			}
			continue
		}
		if inCode {
			codeLines = append(codeLines, line)
			continue
		}

		if line == "" {
			e.flush()
			continue
		}

		if strings.HasPrefix(line, "## ") {
			e.flush()
			e.section = strings.TrimSpace(line[3:])
			e.facts = append(e.facts, Fact{
				Text:       "Section: " + e.section,
				Tags:       []string{"section-header", "atomic-fact", e.date},
				Importance: mem.ImportanceMedium,
				SourceType: mem.SourceTypeInferred,
				Category:   e.section,
			})
			continue
		}

		// The document title is structural, not a fact.
		if strings.HasPrefix(line, "# ") && i == 0 {
			continue
		}

		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") {
			e.flush()
			e.emitListItem(strings.TrimSpace(line[2:]))
			continue
		}

		if numberedRe.MatchString(line) {
			e.flush()
			e.emitListItem(numberedStripRe.ReplaceAllString(line, ""))
			continue
		}

		if urlRe.MatchString(line) && len(line) < 300 {
			e.facts = append(e.facts, Fact{
				Text:       e.section + ": " + mem.Truncate(line, 400),
				Tags:       []string{"url", "link", "atomic-fact", e.date},
				Importance: mem.ImportanceMedium,
				SourceType: mem.SourceTypeInferred,
				Category:   e.section,
			})
			continue
		}

		if kv, ok := e.classifyKeyValue(line); ok {
			e.facts = append(e.facts, kv)
			continue
		}

		// Bold lines are manually-asserted critical rules.
		if strings.Contains(line, "**") {
			e.flush()
			e.facts = append(e.facts, Fact{
				Text:       e.section + ": " + mem.Truncate(line, 500),
				Tags:       []string{"critical-rule", "high-priority", e.date},
				Importance: mem.ImportanceHigh,
				SourceType: mem.SourceTypeUser,
				Category:   e.section,
			})
			continue
		}

		if strings.Contains(line, "|") && !strings.HasPrefix(line, "#") {
			e.emitTableRow(line)
			continue
		}

		if len(line) > 2 {
			e.pending = append(e.pending, line)
		}
	}

	e.flush()
	return e.facts
}

func (e *extractor) emitListItem(text string) {
	// Fragments of three characters or fewer carry no meaning.
	if len(text) <= 3 {
		return
	}
	e.facts = append(e.facts, Fact{
		Text:       e.section + ": " + mem.Truncate(text, 500),
		Tags:       extractTags(text, e.date),
		Importance: boldImportance(text),
		SourceType: mem.SourceTypeInferred,
		Category:   e.section,
	})
}

func (e *extractor) emitCode(codeLines []string, language string) {
	if len(codeLines) == 0 {
		return
	}
	code := strings.Join(codeLines, "\n")
	e.facts = append(e.facts, Fact{
		Text:       e.section + " [Code: " + language + "]: " + mem.Truncate(code, 800),
		Tags:       []string{"code-block", "atomic-fact", e.date, language},
		Importance: mem.ImportanceMedium,
		SourceType: mem.SourceTypeInferred,
		Category:   e.section,
	})
}

func (e *extractor) classifyKeyValue(line string) (Fact, bool) {
	if !strings.Contains(line, ":") || len(line) >= 200 || strings.HasPrefix(line, "**") {
		return Fact{}, false
	}
	key := strings.TrimSpace(line[:strings.Index(line, ":")])
	if key == "" || len(key) >= 50 || strings.HasPrefix(key, "#") {
		return Fact{}, false
	}
	return Fact{
		Text:       e.section + ": " + mem.Truncate(line, 400),
		Tags:       append(extractTags(line, e.date), "key-value"),
		Importance: mem.ImportanceMedium,
		SourceType: mem.SourceTypeInferred,
		Category:   e.section,
	}, true
}

func (e *extractor) emitTableRow(line string) {
	var cells []string
	for _, c := range strings.Split(line, "|") {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	if len(cells) == 0 {
		return
	}
	// Skip the |---|---| separator row.
	separator := true
	for _, c := range cells {
		stripped := strings.NewReplacer("-", "", ":", "").Replace(c)
		if stripped != "" {
			separator = false
			break
		}
	}
	if separator {
		return
	}
	e.facts = append(e.facts, Fact{
		Text:       e.section + " [Table]: " + mem.Truncate(strings.Join(cells, " | "), 400),
		Tags:       []string{"table-row", "atomic-fact", e.date},
		Importance: mem.ImportanceMedium,
		SourceType: mem.SourceTypeInferred,
		Category:   e.section,
	})
}

// flush converts accumulated free text into paragraph- or sentence-level
// facts.
func (e *extractor) flush() {
	if len(e.pending) == 0 {
		return
	}
	full := strings.Join(e.pending, "\n")
	e.pending = nil

	for _, para := range strings.Split(full, "\n\n") {
		para = strings.TrimSpace(para)
		if len(para) < 5 {
			continue
		}
		if len(para) > 300 {
			// Long paragraphs become one fact per sentence.
			split := strings.ReplaceAll(para, ". ", ".\n")
			for _, sentence := range strings.Split(split, "\n") {
				sentence = strings.TrimSpace(sentence)
				if len(sentence) > 10 {
					e.emitParagraph(sentence)
				}
			}
			continue
		}
		e.emitParagraph(para)
	}
}

func (e *extractor) emitParagraph(text string) {
	e.facts = append(e.facts, Fact{
		Text:       e.section + ": " + mem.Truncate(text, 500),
		Tags:       extractTags(text, e.date),
		Importance: boldImportance(text),
		SourceType: mem.SourceTypeInferred,
		Category:   e.section,
	})
}
