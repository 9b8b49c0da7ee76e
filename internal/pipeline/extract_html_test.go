package pipeline

import (
	"testing"

	"quotematch/internal"
)

func TestItemsFromHTMLTables(t *testing.T) {
	html := `
	<html><body>
	<p>Добрый день, прошу счет.</p>
	<table>
	  <tr><th>№</th><th>Наименование</th><th>Кол-во</th><th>Ед. изм.</th></tr>
	  <tr><td>1</td><td>Кабель ВВГнг 3x2.5</td><td>100</td><td>шт</td></tr>
	  <tr><td>2</td><td>Провод ПуГВ 1x6</td><td>50</td><td>м</td></tr>
	  <tr><td>3</td><td></td><td></td><td></td></tr>
	</table>
	</body></html>`

	items := itemsFromHTMLTables(html)
	if len(items) != 2 {
		t.Fatalf("want 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Source != internal.SourceEmailTable {
		t.Fatalf("source: got %s", first.Source)
	}
	if *first.NameOrCode != "Кабель ВВГнг 3x2.5" {
		t.Fatalf("name: got %q", *first.NameOrCode)
	}
	if first.Qty == nil || *first.Qty != 100 {
		t.Fatalf("qty: got %v", first.Qty)
	}
	if first.Unit == nil || *first.Unit != "шт" {
		t.Fatalf("unit: got %v", first.Unit)
	}
	if first.RawLine != "1 | Кабель ВВГнг 3x2.5 | 100 | шт" {
		t.Fatalf("raw line: got %q", first.RawLine)
	}

	second := items[1]
	if *second.NameOrCode != "Провод ПуГВ 1x6" || *second.Qty != 50 || *second.Unit != "м" {
		t.Fatalf("second row: %+v", second)
	}
}

func TestItemsFromHTMLTablesWithoutRecognizedHeaders(t *testing.T) {
	html := `
	<table>
	  <tr><td>Позиция</td><td>Число</td></tr>
	  <tr><td>Лоток перфорированный</td><td>10</td></tr>
	</table>`

	items := itemsFromHTMLTables(html)
	if len(items) != 1 {
		t.Fatalf("want 1 item, got %d", len(items))
	}
	// "Позиция" is a recognized name probe; the qty column is found by
	// scanning for the first numeric cell.
	if *items[0].NameOrCode != "Лоток перфорированный" {
		t.Fatalf("name: got %q", *items[0].NameOrCode)
	}
	if items[0].Qty == nil || *items[0].Qty != 10 {
		t.Fatalf("qty: got %v", items[0].Qty)
	}
}

func TestItemsFromHTMLTablesIgnoresSingleRowTables(t *testing.T) {
	if items := itemsFromHTMLTables(`<table><tr><td>шапка без строк</td></tr></table>`); len(items) != 0 {
		t.Fatalf("want no items, got %d", len(items))
	}
}

func TestItemsFromHTMLTablesIgnoresPlainMarkup(t *testing.T) {
	if items := itemsFromHTMLTables(`<p>Кабель ВВГнг 3x2.5 100 шт</p>`); len(items) != 0 {
		t.Fatalf("want no items, got %d", len(items))
	}
}
