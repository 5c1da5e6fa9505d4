package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate writes a summary sheet plus one sheet per counterparty.
func (g *Generator) Generate(statement model.Statement) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	summarySheet := "Summary"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	groups := groupByCounterparty(statement.Rows)
	if err := g.writeSummary(file, summarySheet, statement, groups); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, group := range groups {
		sheetName := buildSheetName(group.name, usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		if err := g.writeDetail(file, sheetName, statement, group); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type counterpartyGroup struct {
	name   string
	rows   []model.StatementRow
	totals totals
}

type totals struct {
	amount int64
	fee    int64
	payout int64
}

func (t *totals) add(row model.StatementRow) {
	t.amount += row.TotalAmount
	t.fee += row.Fee
	t.payout += row.Payout
}

func groupByCounterparty(rows []model.StatementRow) []counterpartyGroup {
	index := map[string]int{}
	var groups []counterpartyGroup
	for _, row := range rows {
		name := strings.TrimSpace(row.Counterparty)
		pos, ok := index[name]
		if !ok {
			groups = append(groups, counterpartyGroup{name: name})
			pos = len(groups) - 1
			index[name] = pos
		}
		groups[pos].rows = append(groups[pos].rows, row)
		groups[pos].totals.add(row)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].name < groups[j].name })
	return groups
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, statement model.Statement, groups []counterpartyGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	var all totals
	for _, row := range statement.Rows {
		all.add(row)
	}

	set("A1", "Requester")
	set("B1", statement.Requester.Nickname)
	set("A2", "Period start")
	set("B2", formatDate(statement.PeriodStart))
	set("A3", "Period end")
	set("B3", formatDate(statement.PeriodEnd))
	set("A4", "Contracts settled")
	set("B4", len(statement.Rows))
	set("A5", "Total amount")
	set("B5", all.amount)
	set("A6", "Platform fee")
	set("B6", all.fee)
	set("A7", "Payout")
	set("B7", all.payout)

	tableRow := 9
	for i, header := range []string{"Counterparty", "Contracts", "Total amount", "Fee", "Payout"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}
	for i, group := range groups {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), displayName(group.name))
		set(fmt.Sprintf("B%d", row), len(group.rows))
		set(fmt.Sprintf("C%d", row), group.totals.amount)
		set(fmt.Sprintf("D%d", row), group.totals.fee)
		set(fmt.Sprintf("E%d", row), group.totals.payout)
	}

	_ = file.SetColWidth(sheet, "A", "A", 32)
	_ = file.SetColWidth(sheet, "B", "E", 16)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, statement model.Statement, group counterpartyGroup) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Counterparty")
	set("B1", displayName(group.name))
	set("A2", "Period start")
	set("B2", formatDate(statement.PeriodStart))
	set("A3", "Period end")
	set("B3", formatDate(statement.PeriodEnd))

	tableRow := 5
	headers := []string{
		"Settled at",
		"Contract",
		"Title",
		"Total amount",
		"Fee",
		"Payout",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, row := range group.rows {
		r := tableRow + 1 + i
		set(fmt.Sprintf("A%d", r), formatDateTime(row.SettledAt))
		set(fmt.Sprintf("B%d", r), row.ContractID)
		set(fmt.Sprintf("C%d", r), row.Title)
		set(fmt.Sprintf("D%d", r), row.TotalAmount)
		set(fmt.Sprintf("E%d", r), row.Fee)
		set(fmt.Sprintf("F%d", r), row.Payout)
	}
	totalRow := tableRow + 1 + len(group.rows)
	set(fmt.Sprintf("C%d", totalRow), "Total")
	set(fmt.Sprintf("D%d", totalRow), group.totals.amount)
	set(fmt.Sprintf("E%d", totalRow), group.totals.fee)
	set(fmt.Sprintf("F%d", totalRow), group.totals.payout)

	_ = file.SetColWidth(sheet, "A", "A", 20)
	_ = file.SetColWidth(sheet, "B", "B", 10)
	_ = file.SetColWidth(sheet, "C", "C", 40)
	_ = file.SetColWidth(sheet, "D", "F", 14)
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "(unknown)"
	}
	return name
}

// buildSheetName keeps sheet names unique and within the 31 character limit.
func buildSheetName(name string, used map[string]struct{}) string {
	base := sanitizeSheetName(displayName(name))
	if len(base) > 31 {
		base = base[:31]
	}

	nameCandidate := base
	counter := 2
	for {
		if _, exists := used[nameCandidate]; !exists {
			return nameCandidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		nameCandidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Sheet"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
