package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Execute implements the go-flags Commander interface for NoteCommand.
func (c *NoteCommand) Execute(args []string) error {
	text := c.Text
	if text == "" && len(args) > 0 {
		text = strings.Join(args, " ")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("--text is required")
	}

	e, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	if err := e.svc.RecordNote(context.Background(), instantFromUnix(c.Time), text); err != nil {
		return err
	}
	fmt.Println("Note recorded.")
	return nil
}

// Execute implements the go-flags Commander interface for BlogCommand.
func (c *BlogCommand) Execute(args []string) error {
	if c.Text != "" && c.File != "" {
		return fmt.Errorf("--text and --file are mutually exclusive")
	}
	text := c.Text
	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return fmt.Errorf("read blog file: %w", err)
		}
		text = string(data)
	}

	e, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	if err := e.svc.SetBlog(context.Background(), instantFromUnix(c.Time), text); err != nil {
		return err
	}
	fmt.Println("Blog updated.")
	return nil
}
