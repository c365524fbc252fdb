package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/ulogme/internal/aggregate"
	"github.com/runnerr0/ulogme/internal/logday"
	"github.com/runnerr0/ulogme/internal/storage"
)

type refreshJSON struct {
	Days      int     `json:"days"`
	Rewritten []int64 `json:"rewritten"`
	Skipped   int     `json:"skipped"`
	BadLines  int     `json:"bad_lines"`
}

// Execute implements the go-flags Commander interface for RefreshCommand.
func (c *RefreshCommand) Execute(args []string) error {
	e, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	res, err := e.svc.RebuildAll(context.Background(), storage.TriggerCLI)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return printRefreshJSON(res)
	}
	fmt.Printf("Rebuilt %d of %d days (%d up to date", len(res.Rewritten), len(res.Days), len(res.Skipped))
	if bad := res.TotalBadLines(); bad > 0 {
		fmt.Printf(", %d malformed lines skipped", bad)
	}
	fmt.Println(")")
	return nil
}

func printRefreshJSON(res *aggregate.Result) error {
	out := refreshJSON{
		Days:      len(res.Days),
		Rewritten: t0s(res.Rewritten),
		Skipped:   len(res.Skipped),
		BadLines:  res.TotalBadLines(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func t0s(days []logday.Day) []int64 {
	out := make([]int64, len(days))
	for i, d := range days {
		out[i] = d.T0()
	}
	return out
}
