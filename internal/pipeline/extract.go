// Package pipeline turns raw emails into request lines, matches them
// against the catalog snapshot and renders the audit export.
package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"quotematch/internal"
	"quotematch/internal/util"
)

var (
	reLetters   = regexp.MustCompile(`[A-Za-zА-Яа-я]`)
	reDigit     = regexp.MustCompile(`\d`)
	reUnitWord  = regexp.MustCompile(`(?i)\b(шт|штук|pcs|pc|м\.?|метр|kg|кг|уп\.?|компл\.?)\b`)
	reSeparator = regexp.MustCompile(`[;|]+`)
	reWhitespc  = regexp.MustCompile(`\s+`)

	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^--+$`),
		regexp.MustCompile(`(?i)^спасибо`),
		regexp.MustCompile(`(?i)^с уважением`),
		regexp.MustCompile(`(?i)^тел[:\s]`),
		regexp.MustCompile(`(?i)^e-?mail[:\s]`),
		regexp.MustCompile(`(?i)^http`),
	}
)

// ExtractEmail parses a raw RFC822 message and collects request
// lines from the text body, HTML tables and XLSX/PDF attachments.
// Returns the deduplicated, renumbered lines plus subject, plain
// text and attachment names for detection.
func ExtractEmail(raw []byte) ([]internal.LineItem, string, string, []string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", nil, err
	}

	items := make([]internal.LineItem, 0)
	if env.Text != "" {
		items = append(items, itemsFromText(env.Text)...)
	}
	if env.HTML != "" {
		items = append(items, itemsFromHTMLTables(env.HTML)...)
	}

	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachmentNames = append(attachmentNames, filename)

		lower := strings.ToLower(filename)
		switch {
		case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls"):
			if extra, err := itemsFromXLSX(att.Content); err == nil {
				items = append(items, tagAttachment(extra, filename)...)
			}
		case strings.HasSuffix(lower, ".pdf"):
			if extra, err := itemsFromPDF(att.Content); err == nil {
				items = append(items, tagAttachment(extra, filename)...)
			}
		}
	}

	items = dedupeLines(items)
	for i := range items {
		items[i].LineNo = i + 1
	}

	return items, env.GetHeader("Subject"), env.Text, attachmentNames, nil
}

func tagAttachment(items []internal.LineItem, filename string) []internal.LineItem {
	for i := range items {
		if items[i].Meta == nil {
			items[i].Meta = map[string]any{}
		}
		items[i].Meta["attachment"] = filename
	}
	return items
}

func itemsFromText(text string) []internal.LineItem {
	lines := splitLines(text)
	out := make([]internal.LineItem, 0, len(lines))
	lineNo := 0
	for _, line := range lines {
		lineNo++
		item := lineToItem(internal.SourceEmailText, lineNo, line)
		if item == nil {
			continue
		}
		// Short lines without a quantity are almost always greeting
		// or signature fragments.
		if !reLetters.MatchString(item.RawLine) || (item.Qty == nil && len(item.RawLine) < 8) {
			continue
		}
		out = append(out, *item)
	}
	return out
}

func itemsFromHTMLTables(html string) []internal.LineItem {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []internal.LineItem{}
	globalLine := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.ToLower(strings.TrimSpace(cell.Text())))
		})

		nameIdx := headerIndex(headers, []string{"наименование", "товар", "позиция", "номенклатура", "name", "product"})
		qtyIdx := headerIndex(headers, []string{"кол", "qty", "кол-во", "количество", "quantity"})
		unitIdx := headerIndex(headers, []string{"ед", "unit", "изм"})

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, collapseSpaces(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}

			nameCell := cellAt(cells, nameIdx, 0)
			qtyCell := ""
			if qtyIdx >= 0 && qtyIdx < len(cells) {
				qtyCell = cells[qtyIdx]
			} else {
				for _, c := range cells {
					if reDigit.MatchString(c) {
						qtyCell = c
						break
					}
				}
			}
			unitCell := cellAt(cells, unitIdx, -1)

			parsed := util.ParseQty(qtyCell)
			rawLine := strings.Join(cells, " | ")
			if strings.TrimSpace(nameCell) == "" || (parsed.Qty == nil && !reDigit.MatchString(rawLine)) {
				return
			}

			globalLine++
			item := internal.LineItem{
				LineNo:     globalLine,
				Source:     internal.SourceEmailTable,
				RawLine:    rawLine,
				NameOrCode: util.StringPtr(nameCell),
				Qty:        parsed.Qty,
				Unit:       parsed.Unit,
				Meta:       map[string]any{"row": cells},
			}
			if unitCell != "" {
				item.Unit = util.StringPtr(unitCell)
			}
			out = append(out, item)
		})
	})

	return out
}

func itemsFromXLSX(content []byte) ([]internal.LineItem, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lineNo := 0
	out := []internal.LineItem{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		nameIdx, qtyIdx, unitIdx := -1, -1, -1
		for i, row := range rows {
			cells := trimCells(row)
			if len(cells) == 0 {
				continue
			}
			if i < 3 && nameIdx < 0 {
				nameIdx, qtyIdx, unitIdx = sheetColumns(cells)
				if nameIdx >= 0 || qtyIdx >= 0 {
					continue
				}
			}
			if nameIdx < 0 {
				nameIdx, qtyIdx, unitIdx = 0, 1, 2
			}

			name := cellAt(cells, nameIdx, 0)
			qtyCell := cellAt(cells, qtyIdx, -1)
			if qtyCell == "" {
				qtyCell = strings.Join(cells, " ")
			}
			parsed := util.ParseQty(qtyCell)
			if strings.TrimSpace(name) == "" || parsed.Qty == nil {
				continue
			}

			lineNo++
			item := internal.LineItem{
				LineNo:     lineNo,
				Source:     internal.SourceXLSX,
				RawLine:    strings.Join(cells, " | "),
				NameOrCode: util.StringPtr(name),
				Qty:        parsed.Qty,
				Unit:       parsed.Unit,
				Meta:       map[string]any{"sheet": sheet, "rowNumber": i + 1},
			}
			if unit := cellAt(cells, unitIdx, -1); unit != "" {
				item.Unit = util.StringPtr(unit)
			}
			out = append(out, item)
		}
	}

	return out, nil
}

func itemsFromPDF(content []byte) ([]internal.LineItem, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []internal.LineItem{}
	lineNo := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			lineNo++
			item := lineToItem(internal.SourcePDF, lineNo, line)
			if item == nil || item.NameOrCode == nil || item.Qty == nil {
				continue
			}
			out = append(out, *item)
		}
	}
	return out, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// lineToItem parses a single free-text line: pull the quantity out,
// strip unit words and separators, and keep whatever remains as the
// candidate name or code.
func lineToItem(source internal.LineSource, lineNo int, rawLine string) *internal.LineItem {
	compact := collapseSpaces(rawLine)
	if compact == "" || isNoise(compact) {
		return nil
	}

	parsed := util.ParseQty(compact)
	withoutQty := compact
	if parsed.QtyRaw != nil {
		if idx := strings.LastIndex(withoutQty, *parsed.QtyRaw); idx >= 0 {
			withoutQty = withoutQty[:idx] + " " + withoutQty[idx+len(*parsed.QtyRaw):]
		}
	}

	name := reUnitWord.ReplaceAllString(withoutQty, " ")
	name = reSeparator.ReplaceAllString(name, " ")
	name = collapseSpaces(name)
	if len([]rune(name)) <= 1 {
		name = compact
	}

	item := internal.LineItem{
		LineNo:     lineNo,
		Source:     source,
		RawLine:    compact,
		NameOrCode: util.StringPtr(name),
		Qty:        parsed.Qty,
		Unit:       parsed.Unit,
		Meta:       map[string]any{},
	}
	if parsed.QtyRaw != nil {
		item.Meta["qtyRaw"] = *parsed.QtyRaw
	}
	return &item
}

func collapseSpaces(input string) string {
	return strings.TrimSpace(reWhitespc.ReplaceAllString(input, " "))
}

func isNoise(line string) bool {
	for _, re := range noisePatterns {
		if re.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func dedupeLines(items []internal.LineItem) []internal.LineItem {
	seen := map[string]struct{}{}
	out := make([]internal.LineItem, 0, len(items))
	for _, item := range items {
		qtyKey := "null"
		if item.Qty != nil {
			qtyKey = fmt.Sprintf("%g", *item.Qty)
		}
		key := string(item.Source) + "|" + item.RawLine + "|" + qtyKey
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func headerIndex(headers []string, probes []string) int {
	for i, h := range headers {
		for _, probe := range probes {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func cellAt(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func sheetColumns(headers []string) (nameIdx, qtyIdx, unitIdx int) {
	lowered := make([]string, 0, len(headers))
	for _, h := range headers {
		lowered = append(lowered, strings.ToLower(h))
	}
	nameIdx = headerIndex(lowered, []string{"наимен", "товар", "номенк", "позиц", "name", "product"})
	qtyIdx = headerIndex(lowered, []string{"кол", "qty", "quantity"})
	unitIdx = headerIndex(lowered, []string{"ед", "unit", "изм"})
	return
}

func trimCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, collapseSpaces(c))
	}
	return out
}
