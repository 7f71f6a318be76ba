// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package ranking

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/tomtom215/rankbench/internal/config"
	"github.com/tomtom215/rankbench/internal/llm"
	"github.com/tomtom215/rankbench/internal/logging"
)

const systemPrompt = "You re-rank movie candidates for a recommender system. Follow the answer format exactly."

// PromptData is the value the prompt template is rendered with.
type PromptData struct {
	UserID string

	// History holds watched titles, oldest first.
	History []string

	// Candidates holds candidate titles in presentation order. The model refers
	// to them by 1-based position.
	Candidates []string
}

// LLM asks a chat model to order the candidates.
type LLM struct {
	completer llm.Completer
	tmpl      *template.Template
	titles    map[string]string
}

// NewLLM parses prompt with config.PromptFuncs. Items missing from titles are
// shown by id.
func NewLLM(completer llm.Completer, prompt string, titles map[string]string) (*LLM, error) {
	if prompt == "" {
		prompt = config.DefaultPrompt
	}
	tmpl, err := template.New("prompt").Funcs(config.PromptFuncs).Option("missingkey=error").Parse(prompt)
	if err != nil {
		return nil, fmt.Errorf("ranking: parse prompt: %w", err)
	}
	return &LLM{completer: completer, tmpl: tmpl, titles: titles}, nil
}

// Name implements Ranker.
func (l *LLM) Name() string { return "llm" }

// Rank implements Ranker.
func (l *LLM) Rank(ctx context.Context, req *Request) ([]string, error) {
	prompt, err := l.Prompt(req)
	if err != nil {
		return nil, err
	}

	out, err := l.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	ranking, err := ParseRanking(out.Content, req.Candidates, l.titles)
	if err != nil {
		logging.Ctx(ctx).Debug().
			Str("uid", req.UserID).
			Bool("cached", out.Cached).
			Str("completion", out.Content).
			Msg("unparseable ranking")
		return nil, err
	}
	return ranking, nil
}

// Prompt renders the user message for req.
func (l *LLM) Prompt(req *Request) (string, error) {
	data := PromptData{
		UserID:     req.UserID,
		History:    l.titlesOf(req.History),
		Candidates: l.titlesOf(req.Candidates),
	}
	var b strings.Builder
	if err := l.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("ranking: render prompt: %w", err)
	}
	return b.String(), nil
}

func (l *LLM) titlesOf(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if t, ok := l.titles[id]; ok && t != "" {
			out[i] = t
		} else {
			out[i] = id
		}
	}
	return out
}

var (
	// a bare candidate number, optionally decorated: 3, #3, [3], (3), 3.
	numberToken = regexp.MustCompile(`^[#\[(]?(\d+)[\]).:]?$`)

	// a list marker in front of a title: "1. ", "2) ", "- "
	listMarker = regexp.MustCompile(`^(?:\d+[.):]|[-*])\s+`)
)

// ParseRanking maps a completion back onto candidate ids. Each entry is
// either a 1-based candidate number or a candidate title. Entries are
// separated by newlines, or by commas when the answer is a single line.
func ParseRanking(content string, candidates []string, titles map[string]string) ([]string, error) {
	byTitle := make(map[string]string, len(candidates))
	for _, id := range candidates {
		if t := titles[id]; t != "" {
			byTitle[normalizeTitle(t)] = id
		}
	}

	tokens := splitAnswer(content, len(candidates))
	ranking := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))

	for _, tok := range tokens {
		var id string
		if m := numberToken.FindStringSubmatch(tok); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n < 1 || n > len(candidates) {
				return nil, fmt.Errorf("%w: candidate number %d out of range 1..%d", ErrMalformedOutput, n, len(candidates))
			}
			id = candidates[n-1]
		} else {
			// "2001: A Space Odyssey" looks like a list marker, so try the
			// raw token first
			var ok bool
			if id, ok = byTitle[normalizeTitle(tok)]; !ok {
				if id, ok = byTitle[normalizeTitle(listMarker.ReplaceAllString(tok, ""))]; !ok {
					return nil, fmt.Errorf("%w: unknown candidate %q", ErrMalformedOutput, tok)
				}
			}
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: %q listed twice", ErrMalformedOutput, tok)
		}
		seen[id] = true
		ranking = append(ranking, id)
	}

	if err := CheckPermutation(ranking, candidates); err != nil {
		return nil, err
	}
	return ranking, nil
}

// splitAnswer prefers lines (titles may contain commas) and falls back to
// commas for a single-line answer. Blank entries and a trailing period are
// dropped.
func splitAnswer(content string, n int) []string {
	content = strings.TrimSpace(content)
	content = strings.Trim(content, "`")

	var parts []string
	lines := nonEmpty(strings.Split(content, "\n"))
	if len(lines) >= n && n > 1 {
		parts = lines
	} else {
		parts = nonEmpty(strings.FieldsFunc(content, func(r rune) bool {
			return r == ',' || r == '\n' || r == ';'
		}))
	}

	for i, p := range parts {
		parts[i] = strings.TrimSuffix(strings.Trim(p, " \t\"'"), ".")
	}
	return nonEmpty(parts)
}

func nonEmpty(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.Trim(s, " \t\"'")), " "))
}
