// Package basket groups transaction rows into per-client item sets, the input
// of association-rule mining.
package basket

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/export"
	"github.com/23skdu/proximity/internal/metrics"
)

// Transaction is one (transaction number, item) line of the source table.
type Transaction struct {
	Number string
	Item   string
}

// Basket is the de-duplicated set of items bought under one run of equal
// transaction numbers, in first-seen order. IDs start at 1.
type Basket struct {
	ID    int
	Items []string
}

// Accumulator is the grouping state threaded through Add. A zero value is
// ready to use. After Add returns, use the returned value and drop the
// receiver: both share storage.
type Accumulator struct {
	baskets []Basket
	last    string
	started bool
	seen    map[string]struct{}
}

// Add folds one transaction into the accumulator. A transaction whose number
// differs from the previous one opens a new basket; an item already in the
// current basket is ignored.
func (a Accumulator) Add(tx Transaction) Accumulator {
	if !a.started || tx.Number != a.last {
		a.baskets = append(a.baskets, Basket{ID: len(a.baskets) + 1})
		a.seen = make(map[string]struct{})
		a.started = true
	}
	a.last = tx.Number
	if _, ok := a.seen[tx.Item]; ok {
		return a
	}
	a.seen[tx.Item] = struct{}{}
	cur := &a.baskets[len(a.baskets)-1]
	cur.Items = append(cur.Items, tx.Item)
	return a
}

// Baskets returns a copy of the baskets built so far.
func (a Accumulator) Baskets() []Basket {
	out := make([]Basket, len(a.baskets))
	for i, b := range a.baskets {
		out[i] = Basket{ID: b.ID, Items: slices.Clone(b.Items)}
	}
	return out
}

// Group folds txs into baskets in a single pass.
func Group(txs []Transaction) []Basket {
	var acc Accumulator
	for _, tx := range txs {
		acc = acc.Add(tx)
	}
	baskets := acc.Baskets()
	metrics.BasketsBuiltTotal.Add(float64(len(baskets)))
	return baskets
}

// Transactions projects raw rows onto (number, item) pairs. Rows where both
// fields are empty are skipped, like blank spreadsheet lines; a row with
// only one of them fails.
func Transactions(rows []core.RawRecord, numberColumn, itemColumn string) ([]Transaction, error) {
	out := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		number, _ := row.Field(numberColumn)
		item, _ := row.Field(itemColumn)
		number, item = strings.TrimSpace(number), strings.TrimSpace(item)
		switch {
		case number == "" && item == "":
			continue
		case number == "":
			return nil, core.NewMissingFieldError(row.Index, numberColumn)
		case item == "":
			return nil, core.NewMissingFieldError(row.Index, itemColumn)
		}
		out = append(out, Transaction{Number: number, Item: item})
	}
	return out, nil
}

// Write emits one line per basket with its items separated by single spaces.
func Write(w io.Writer, baskets []Basket) error {
	bw := bufio.NewWriter(w)
	for _, b := range baskets {
		if _, err := bw.WriteString(strings.Join(b.Items, " ")); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes baskets to path, replacing any existing file. A failed
// write leaves the previous file untouched.
func WriteFile(path string, baskets []Basket) error {
	err := export.WriteFile(path, func(w io.Writer) error { return Write(w, baskets) })
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
