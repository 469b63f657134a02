package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/dolmen-go/contextio"
	"github.com/vinicius-lino-figueiredo/gemongo"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
)

const maxLineSize = 16 * 1024 * 1024

// documents returns the --doc document, or every document read from stdin
// when the flag is not set.
func (a *app) documents(ctx context.Context) iter.Seq2[gemongo.Document, error] {
	if doc := a.config.GetString("doc"); doc != "" {
		return func(yield func(gemongo.Document, error) bool) {
			yield(parseFlag("doc", doc))
		}
	}
	return readDocuments(ctx, a.in)
}

// readDocuments parses one extended JSON document per line of r. Blank lines
// are skipped. Reading stops when ctx is done.
func readDocuments(ctx context.Context, r io.Reader) iter.Seq2[gemongo.Document, error] {
	return func(yield func(gemongo.Document, error) bool) {
		scanner := bufio.NewScanner(contextio.NewReader(ctx, r))
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			doc, err := data.ParseJSON([]byte(text))
			if err != nil {
				yield(nil, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// parseFlag parses the extended JSON document given to the named flag.
func parseFlag(name, value string) (gemongo.Document, error) {
	doc, err := data.ParseJSON([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return doc, nil
}

// parseList parses the extended JSON array given to the named flag.
func parseList(name, value string) ([]any, error) {
	v, err := data.ParseJSONValue([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid --%s: expected an array", name)
	}
	return list, nil
}
