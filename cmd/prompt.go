package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JakeFAU/catalog-scraper/internal/config"
	"github.com/JakeFAU/catalog-scraper/internal/discovery"
)

// prompter asks for the run inputs one line at a time, repeating a question
// until the answer is valid.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// fill asks for the site, limit and concurrency. Empty answers keep the
// current value when it is valid.
func (p *prompter) fill(cfg *config.Config) error {
	site, err := p.ask("Target WooCommerce website URL", cfg.Site, func(s string) error {
		if s == "" {
			return errors.New("website URL is required")
		}
		return discovery.ValidateSiteURL(s)
	})
	if err != nil {
		return err
	}
	cfg.Site = site

	limitDef := cfg.Crawler.Limit
	if config.ValidateLimit(limitDef) != nil {
		limitDef = 0
	}
	limit, err := p.askInt("Maximum number of products to scrape (0 = no limit)", limitDef, config.ValidateLimit)
	if err != nil {
		return err
	}
	cfg.Crawler.Limit = limit

	concurrencyDef := cfg.Crawler.Concurrency
	if cfg.Crawler.ValidateConcurrency(concurrencyDef) != nil {
		concurrencyDef = 1
	}
	concurrency, err := p.askInt("Number of concurrent browser sessions", concurrencyDef, cfg.Crawler.ValidateConcurrency)
	if err != nil {
		return err
	}
	cfg.Crawler.Concurrency = concurrency
	return nil
}

func (p *prompter) ask(question, def string, validate func(string) error) (string, error) {
	if validate(def) != nil {
		def = ""
	}
	for {
		if def != "" {
			fmt.Fprintf(p.out, "%s [%s]: ", question, def)
		} else {
			fmt.Fprintf(p.out, "%s: ", question)
		}
		line, err := p.in.ReadString('\n')
		answer := strings.TrimSpace(line)
		if err != nil && (answer == "" || !errors.Is(err, io.EOF)) {
			return "", fmt.Errorf("read answer: %w", err)
		}
		if answer == "" {
			answer = def
		}
		verr := validate(answer)
		if verr == nil {
			return answer, nil
		}
		fmt.Fprintf(p.out, "  %v\n", verr)
		if err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
	}
}

func (p *prompter) askInt(question string, def int, validate func(int) error) (int, error) {
	answer, err := p.ask(question, strconv.Itoa(def), func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%q is not a number", s)
		}
		return validate(n)
	})
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(answer)
}
