package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vinicius-lino-figueiredo/gemongo"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
)

func (a *app) matchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Print the documents that match a query",
		Example: `  echo '{"a": [1, 5]}' | gemongo match --query '{"a": {"$gt": 3}}'
  gemongo match --doc '{"a": [1, 5]}' --query '{"a": 5}' --position`,
		Args: cobra.NoArgs,
		RunE: a.runMatch,
	}
	cmd.Flags().String("query", "{}", "query document")
	cmd.Flags().String("doc", "", "document to match instead of reading stdin")
	cmd.Flags().Bool("position", false, "prefix each document with the matched array position")
	return cmd
}

func (a *app) runMatch(cmd *cobra.Command, _ []string) error {
	query, err := parseFlag("query", a.config.GetString("query"))
	if err != nil {
		return err
	}
	withPosition := a.config.GetBool("position")

	for doc, err := range a.documents(cmd.Context()) {
		if err != nil {
			return err
		}
		res, err := a.engine.MatchPosition(doc, query)
		if err != nil {
			return err
		}
		if !res.Matched {
			continue
		}
		if withPosition {
			_, err = fmt.Fprintf(a.out, "%d\t%s\n", res.Position, doc)
		} else {
			_, err = fmt.Fprintln(a.out, doc)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) updateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Apply an update to every document that matches a query",
		Long: `Apply an update to every document that matches a query and print the
updated documents. With --upsert, a new document is built from the query and
printed when no document matches.`,
		Example: `  echo '{"_id": 1, "n": 1}' | gemongo update --update '{"$inc": {"n": 1}}'
  gemongo update --doc '{"xs": [1, 9]}' --update '{"$set": {"xs.$[x]": 0}}' --array-filters '[{"x": {"$gt": 5}}]'`,
		Args: cobra.NoArgs,
		RunE: a.runUpdate,
	}
	cmd.Flags().String("update", "", "update document")
	cmd.Flags().String("query", "{}", "query selecting the documents to update")
	cmd.Flags().String("doc", "", "document to update instead of reading stdin")
	cmd.Flags().String("array-filters", "[]", "array filters of the update")
	cmd.Flags().Bool("upsert", false, "print a new document when nothing matches")
	return cmd
}

func (a *app) runUpdate(cmd *cobra.Command, _ []string) error {
	if a.config.GetString("update") == "" {
		return fmt.Errorf("--update is required")
	}
	update, err := parseFlag("update", a.config.GetString("update"))
	if err != nil {
		return err
	}
	query, err := parseFlag("query", a.config.GetString("query"))
	if err != nil {
		return err
	}
	filters, err := parseList("array-filters", a.config.GetString("array-filters"))
	if err != nil {
		return err
	}

	matched := 0
	for doc, err := range a.documents(cmd.Context()) {
		if err != nil {
			return err
		}
		res, err := a.engine.MatchPosition(doc, query)
		if err != nil {
			return err
		}
		if !res.Matched {
			continue
		}
		matched++
		upd, err := a.engine.Modify(doc, update,
			gemongo.WithArrayFilters(filters...),
			gemongo.WithPosition(res.Position),
		)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(a.out, upd.NewDoc); err != nil {
			return err
		}
	}

	if matched > 0 || !a.config.GetBool("upsert") {
		return nil
	}
	upd, err := a.engine.Upsert(query, update, gemongo.WithArrayFilters(filters...))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, upd.NewDoc)
	return err
}

func (a *app) compareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare [a] [b]",
		Short: "Print -1, 0 or 1 comparing two extended JSON values",
		Example: `  gemongo compare '5' '5.0'
  gemongo compare '"a"' '{"$oid": "507f1f77bcf86cd799439011"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			values := make([]any, len(args))
			for n, arg := range args {
				v, err := data.ParseJSONValue([]byte(arg))
				if err != nil {
					return fmt.Errorf("invalid value %q: %w", arg, err)
				}
				values[n] = v
			}
			c, err := a.engine.Compare(values[0], values[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, c)
			return err
		},
	}
}
