package scrape

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// ScriptSource shells out to one executable per provider, found under Dir
// as <provider>. Account fields travel as SCRAPER_* environment variables;
// the row protocol comes back on stdout and a two-factor code, when asked
// for, goes in on stdin.
type ScriptSource struct {
	dir    string
	logger *log.Logger
}

func NewScriptSource(dir string, logger *log.Logger) *ScriptSource {
	return &ScriptSource{dir: dir, logger: logger.WithComponent(log.ComponentScrape)}
}

func (s *ScriptSource) Fetch(ctx context.Context, req FetchRequest) ([]core.Transaction, error) {
	script := filepath.Join(s.dir, req.Provider)
	cmd := exec.CommandContext(ctx, script, req.Account)
	cmd.Env = fieldEnv(req.Fields)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open scraper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open scraper stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start scraper %s: %w", req.Provider, err)
	}

	txns, parseErr := s.consume(ctx, req, stdout, stdin)
	stdin.Close()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		// CommandContext already killed the child.
		return nil, fmt.Errorf("scraper %s/%s aborted: %w", req.Provider, req.Account, ctx.Err())
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if waitErr != nil {
		s.logger.WarnContext(ctx, "Scraper exited with error",
			log.FieldProvider, req.Provider, log.FieldAccount, req.Account,
			log.FieldError, waitErr, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("scraper %s/%s: %w", req.Provider, req.Account, waitErr)
	}
	return txns, nil
}

// consume drives the line protocol: answer at most one code prompt, find
// the header, then read exactly the announced number of rows.
func (s *ScriptSource) consume(ctx context.Context, req FetchRequest, stdout io.Reader, stdin io.Writer) ([]core.Transaction, error) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	expected := -1
	var txns []core.Transaction
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if expected < 0 {
			if IsCodePrompt(line) {
				if err := s.answerPrompt(ctx, req, stdin); err != nil {
					return nil, err
				}
				continue
			}
			n, isHeader, err := ParseHeader(line)
			if err != nil {
				return nil, err
			}
			if !isHeader {
				// Scripts are chatty before the header; ignore.
				continue
			}
			expected = n
			continue
		}

		if len(txns) == expected {
			break
		}
		row, err := ParseRow(line)
		if err != nil {
			return nil, fmt.Errorf("scraper %s/%s: %w", req.Provider, req.Account, err)
		}
		txns = append(txns, row.Transaction(req.Kind, req.Provider, req.Account, req.Fields["account_name"]))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read scraper output: %w", err)
	}
	if expected < 0 {
		return nil, fmt.Errorf("%w: header never arrived", ErrBadHeader)
	}
	if len(txns) != expected {
		return nil, fmt.Errorf("%w: header announced %d rows, got %d", ErrMalformedRow, expected, len(txns))
	}
	return txns, nil
}

func (s *ScriptSource) answerPrompt(ctx context.Context, req FetchRequest, stdin io.Writer) error {
	if req.Code == nil {
		return fmt.Errorf("scraper %s/%s requires a code but none can be supplied", req.Provider, req.Account)
	}
	s.logger.InfoContext(ctx, "Scraper waiting for code",
		log.FieldProvider, req.Provider, log.FieldAccount, req.Account)
	select {
	case code := <-req.Code:
		if _, err := io.WriteString(stdin, code+"\n"); err != nil {
			return fmt.Errorf("send code: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fieldEnv extends the parent environment with the account's credential
// fields. Scripts need PATH, HOME and friends to find their interpreters.
func fieldEnv(fields Fields) []string {
	env := os.Environ()
	for k, v := range fields {
		env = append(env, "SCRAPER_"+strings.ToUpper(k)+"="+v)
	}
	return env
}
