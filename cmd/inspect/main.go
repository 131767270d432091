// Command inspect dumps the badger records of a collab-live database.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	flags := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	dbPath := flags.String("db", database.DefaultPath, "path to the badger database")
	prefix := flags.StringP("prefix", "p", "project:", "key prefix to scan (project:, member:, task:, msg:, file:, dm:)")
	limit := flags.IntP("limit", "n", 100, "maximum number of rows")
	width := flags.Int("width", 80, "truncate values to this many characters")
	noColor := flags.Bool("no-color", false, "disable colored output")
	if err := flags.Parse(args); err != nil {
		return exitConfig, err
	}
	if *noColor {
		color.Disable()
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := scan(db, *prefix, *limit, *width)
	if err != nil {
		return exitRuntime, err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Size", "Value"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.AppendBulk(rows)
	table.Render()

	color.Info.Printf("%d record(s) under %q\n", len(rows), *prefix)
	return exitOK, nil
}

func scan(db *badger.DB, prefix string, limit, width int) ([][]string, error) {
	var rows [][]string
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p) && len(rows) < limit; it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				rows = append(rows, []string{
					string(item.KeyCopy(nil)),
					fmt.Sprintf("%d", len(v)),
					truncate(render(v), width),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

// render shows a CBOR record as JSON, or flags it when it cannot be decoded.
func render(v []byte) string {
	var decoded any
	if err := cbor.Unmarshal(v, &decoded); err != nil {
		return color.Red.Sprintf("undecodable: %v", err)
	}
	out, err := json.Marshal(jsonSafe(decoded))
	if err != nil {
		return fmt.Sprintf("%v", decoded)
	}
	return string(out)
}

// jsonSafe turns the map[any]any produced by CBOR into JSON-friendly maps.
func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonSafe(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = jsonSafe(t[i])
		}
		return t
	default:
		return v
	}
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 0 || len([]rune(s)) <= width {
		return s
	}
	return string([]rune(s)[:width-1]) + "…"
}
