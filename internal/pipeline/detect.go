package pipeline

import "strings"

type DetectResult struct {
	IsQuote bool
	Score   float64
	Reason  string
}

const quoteScoreCutoff = 0.45

var quoteKeywords = []string{"заявк", "кп", "коммерческ", "прошу", "нужно", "кол-во", "qty", "счет"}

// DetectQuoteRequest scores how likely a message is an actual
// procurement request before any matching work is spent on it.
func DetectQuoteRequest(subject, text, html string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range quoteKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	numbers := countNumberRuns(text)
	switch {
	case numbers >= 2:
		score += 0.4
	case numbers == 1:
		score += 0.2
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".xlsx") || strings.HasSuffix(ln, ".xls") || strings.HasSuffix(ln, ".pdf") {
			score += 0.25
			break
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	isQuote := score >= quoteScoreCutoff
	reason := "rules_negative"
	if isQuote {
		reason = "rules_positive"
	}
	return DetectResult{IsQuote: isQuote, Score: score, Reason: reason}
}

func countNumberRuns(text string) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] >= '0' && text[i] <= '9' {
			count++
			for i+1 < len(text) && text[i+1] >= '0' && text[i+1] <= '9' {
				i++
			}
		}
	}
	return count
}
