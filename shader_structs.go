package astral

import (
	"fmt"
	"strings"
	"unicode"
)

// The source format lets every stage paste its own copy of a struct
// declaration, with nothing enforcing that the copies stay binary
// compatible. Divergent copies are a defect class, not a convention to
// preserve: identical redeclarations are hoisted into the pass common
// source once, and textually divergent redeclarations of the same
// struct name fail the load.

type structDecl struct {
	name string
	body string // normalized
	text string // verbatim declaration, for removal
}

// extractStructs scans stage source for `struct Name { ... };`
// declarations.
func extractStructs(source string) []structDecl {
	var decls []structDecl
	runes := []rune(source)
	i := 0
	for i < len(runes) {
		j := indexWord(runes, i, "struct")
		if j < 0 {
			break
		}
		k := j + len("struct")
		for k < len(runes) && unicode.IsSpace(runes[k]) {
			k++
		}
		nameStart := k
		for k < len(runes) && (unicode.IsLetter(runes[k]) || unicode.IsDigit(runes[k]) || runes[k] == '_') {
			k++
		}
		name := string(runes[nameStart:k])
		for k < len(runes) && unicode.IsSpace(runes[k]) {
			k++
		}
		if name == "" || k >= len(runes) || runes[k] != '{' {
			i = j + len("struct")
			continue
		}
		depth := 0
		bodyStart := k + 1
		end := -1
		for ; k < len(runes); k++ {
			switch runes[k] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					end = k
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			break
		}
		textEnd := end + 1
		if textEnd < len(runes) && runes[textEnd] == ';' {
			textEnd++
		}
		decls = append(decls, structDecl{
			name: name,
			body: normalizeSource(string(runes[bodyStart:end])),
			text: string(runes[j:textEnd]),
		})
		i = textEnd
	}
	return decls
}

// indexWord finds the next occurrence of word at a word boundary.
func indexWord(runes []rune, from int, word string) int {
	w := []rune(word)
	for i := from; i+len(w) <= len(runes); i++ {
		if string(runes[i:i+len(w)]) != word {
			continue
		}
		if i > 0 && isWordRune(runes[i-1]) {
			continue
		}
		if i+len(w) < len(runes) && isWordRune(runes[i+len(w)]) {
			continue
		}
		return i
	}
	return -1
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// normalizeSource collapses whitespace runs so that formatting-only
// differences between stage copies do not count as divergence.
func normalizeSource(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HoistSharedStructs deduplicates struct declarations across the
// stages of one pass. A struct declared identically (modulo
// whitespace) in several stages moves to the pass common source; a
// struct declared divergently under one name is a load-time error.
func HoistSharedStructs(pass *ShaderPass) error {
	type seen struct {
		decl   structDecl
		stages []ShaderStageKind
	}
	byName := map[string]*seen{}
	order := []string{}

	for _, stage := range pass.Stages {
		for _, d := range extractStructs(stage.Source) {
			s, ok := byName[d.name]
			if !ok {
				byName[d.name] = &seen{decl: d, stages: []ShaderStageKind{stage.Kind}}
				order = append(order, d.name)
				continue
			}
			if s.decl.body != d.body {
				return fmt.Errorf("pass %q: struct %s diverges between %s and %s stages",
					pass.Name, d.name, s.stages[0], stage.Kind)
			}
			s.stages = append(s.stages, stage.Kind)
		}
	}

	var hoisted strings.Builder
	for _, name := range order {
		s := byName[name]
		if len(s.stages) < 2 {
			continue
		}
		// Shared and identical: keep one copy in the pass common
		// source, strip the stage copies.
		hoisted.WriteString(s.decl.text)
		hoisted.WriteString("\n")
		for i := range pass.Stages {
			for _, d := range extractStructs(pass.Stages[i].Source) {
				if d.name == name {
					pass.Stages[i].Source = strings.Replace(pass.Stages[i].Source, d.text, "", 1)
				}
			}
		}
	}
	if hoisted.Len() > 0 {
		pass.CommonSource += "\n" + hoisted.String()
	}
	return nil
}
