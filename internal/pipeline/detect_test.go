package pipeline

import "testing"

func TestDetectQuoteRequest(t *testing.T) {
	cases := []struct {
		name        string
		subject     string
		text        string
		html        string
		attachments []string
		want        bool
	}{
		{
			name:    "subject keyword plus quantities",
			subject: "Заявка на кабель",
			text:    "Прошу выставить счет:\nКабель ВВГнг 3х2.5 100 шт\nПровод ПВС 2х1.5 50 м",
			want:    true,
		},
		{
			name:        "spreadsheet attachment with request subject",
			subject:     "Прошу КП",
			attachments: []string{"заявка.xlsx"},
			want:        true,
		},
		{
			name:    "html table with request subject",
			subject: "Заявка на материалы",
			html:    "<table><tr><td>Кол-во</td></tr><tr><td>100</td></tr></table>",
			want:    true,
		},
		{
			name: "html table alone is not enough",
			html: "<table><tr><td>Кол-во</td></tr><tr><td>100</td></tr></table>",
			want: false,
		},
		{
			name:    "plain newsletter",
			subject: "Новости компании",
			text:    "Поздравляем с праздником!",
			want:    false,
		},
		{
			name: "empty message",
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectQuoteRequest(tc.subject, tc.text, tc.html, tc.attachments)
			if got.IsQuote != tc.want {
				t.Fatalf("IsQuote: want %v, got %v (score %.2f)", tc.want, got.IsQuote, got.Score)
			}
			if got.Score < 0 || got.Score > 1 {
				t.Fatalf("score out of range: %v", got.Score)
			}
			wantReason := "rules_negative"
			if tc.want {
				wantReason = "rules_positive"
			}
			if got.Reason != wantReason {
				t.Fatalf("reason: want %s, got %s", wantReason, got.Reason)
			}
		})
	}
}

func TestCountNumberRuns(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"кабель", 0},
		{"100", 1},
		{"3х2.5 100 шт", 4},
		{"поз 1: 10 шт, поз 2: 20 шт", 4},
	}
	for _, tc := range cases {
		if got := countNumberRuns(tc.input); got != tc.want {
			t.Fatalf("%q: want %d, got %d", tc.input, tc.want, got)
		}
	}
}
