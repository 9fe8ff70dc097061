package main

import (
	"fmt"
	"os"

	"github.com/lox/blackjackd/internal/audit"
	"github.com/lox/blackjackd/internal/deck"
	"github.com/lox/blackjackd/internal/tui"
)

// VerifyCmd re-checks audit records, or a single seed against a hash.
type VerifyCmd struct {
	Paths   []string `kong:"arg,optional,help='Audit record files or directories'"`
	Seed    string   `kong:"help='Disclosed deck seed (hex)'"`
	Hash    string   `kong:"help='Published deck hash (hex)'"`
	Verbose bool     `kong:"short='V',help='Print every verified game'"`
	Plain   bool     `kong:"help='Disable colour output'"`
}

func (c *VerifyCmd) Run() error {
	if c.Plain {
		tui.SetPlain()
	}

	if c.Seed != "" || c.Hash != "" {
		return c.verifySeed()
	}
	if len(c.Paths) == 0 {
		return fmt.Errorf("nothing to verify: pass record paths or --seed and --hash")
	}

	files, err := c.collect()
	if err != nil {
		return err
	}

	var failed int
	for _, path := range files {
		rec, err := audit.Load(path)
		if err == nil {
			err = audit.Check(rec)
		}
		if err != nil {
			failed++
			fmt.Printf("%s %s: %v\n", tui.LoseStyle.Render("FAIL"), path, err)
			continue
		}
		if c.Verbose {
			fmt.Print(tui.RenderGame(&rec.Game))
		}
	}

	fmt.Printf("%d records checked, %d failed\n", len(files), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d records failed verification", failed, len(files))
	}
	return nil
}

func (c *VerifyCmd) verifySeed() error {
	seed, err := deck.ParseSeed(c.Seed)
	if err != nil {
		return err
	}
	if !deck.Verify(seed, c.Hash) {
		fmt.Println(tui.LoseStyle.Render("MISMATCH"))
		return fmt.Errorf("seed does not open hash %s", c.Hash)
	}
	fmt.Println(tui.WinStyle.Render("OK"))
	return nil
}

// collect expands directories into their record files.
func (c *VerifyCmd) collect() ([]string, error) {
	var files []string
	for _, p := range c.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := audit.Scan(p)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}
