package main

import (
	"fmt"
	"io"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
)

const entryTemplate = `{{ .Offset | printf "%010d" | faint }} {{ .Size | humanBytes | printf "%8s" }} {{ .Payload | bytesToString }}`

type record struct {
	Offset  uint64
	Size    uint64
	Payload []byte
}

var FuncMap = template.FuncMap{
	"humanBytes": func(n uint64) string {
		return humanize.Bytes(n)
	},
	"bytesToString": func(b []byte) string { return string(b) },
	"hex":           func(b []byte) string { return fmt.Sprintf("%x", b) },
}

func ParseTemplate(body string) (*template.Template, error) {
	return template.New("").Funcs(promptui.FuncMap).Funcs(FuncMap).Parse(fmt.Sprintf("%s\n", body))
}

func getTable(headers []string, out io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	return table
}
