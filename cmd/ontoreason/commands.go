package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cognicore/ontoreason/pkg/ontoreason"
	"github.com/cognicore/ontoreason/pkg/ontoreason/enrich"
	"github.com/cognicore/ontoreason/pkg/ontoreason/graph"
	"github.com/cognicore/ontoreason/pkg/ontoreason/query"
)

func enrichCmd(a *app) *cobra.Command {
	var (
		req   enrich.Request
		props []string
		file  string
	)
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Classify one entity, or a JSON array of entities with --file",
		Example: `  ontoreason enrich --text "Jane Doe" --type person --prop memberOf=SenateChamber
  ontoreason enrich --file entities.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, r, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer r.Close()

			if file != "" {
				reqs, err := readRequests(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				ents, err := r.EnrichBatch(cmd.Context(), reqs)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), ents)
			}

			if req.Properties, err = parseProps(props); err != nil {
				return err
			}
			ent, err := r.Enrich(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ent)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Text, "text", "", "Entity surface text")
	f.StringVar(&req.URI, "uri", "", "Entity IRI or prefixed name")
	f.StringVar(&req.AssertedType, "type", "", "Extraction label or class name")
	f.Float64Var(&req.Confidence, "confidence", 1, "Extraction confidence")
	f.StringArrayVarP(&props, "prop", "p", nil, "Property as name=value (repeatable)")
	f.StringVarP(&file, "file", "f", "", "JSON array of requests ('-' reads stdin)")
	return cmd
}

func parseProps(props []string) (map[string][]string, error) {
	if len(props) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(props))
	for _, p := range props {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("property %q is not name=value", p)
		}
		out[name] = append(out[name], value)
	}
	return out, nil
}

func readRequests(stdin io.Reader, path string) ([]enrich.Request, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var reqs []enrich.Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return reqs, nil
}

func queryCmd(a *app) *cobra.Command {
	var (
		limit    int
		distinct bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "query <patterns>",
		Short: "Evaluate a triple-pattern query against the base graph",
		Example: `  ontoreason query '?a a na:ExecutiveAgency . ?a schema:name ?name'
  ontoreason query 'SELECT DISTINCT ?t WHERE { ?x a ?t }' --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, r, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer r.Close()

			var opts []query.Option
			if limit > 0 {
				opts = append(opts, query.Limit(limit))
			}
			if distinct {
				opts = append(opts, query.Distinct())
			}
			rows, err := r.Query(args[0], opts...)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			return writeTable(cmd.OutOrStdout(), rows, r.Model().Namespaces())
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows")
	cmd.Flags().BoolVar(&distinct, "distinct", false, "Drop duplicate rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print bindings as JSON")
	return cmd
}

func writeTable(w io.Writer, rows []query.Binding, ns *graph.Namespaces) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "(no results)")
		return err
	}
	var vars []string
	for v := range rows[0] {
		vars = append(vars, v)
	}
	slices.Sort(vars)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, v := range vars {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, "?"+v)
	}
	fmt.Fprintln(tw)
	for _, b := range rows {
		for i, v := range vars {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			t := b[v]
			if t.IsIRI() {
				fmt.Fprint(tw, ns.Compact(t.Value))
			} else {
				fmt.Fprint(tw, t.String())
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func checkCmd(a *app) *cobra.Command {
	var (
		recent int
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report consistency violations in the base graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, r, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer r.Close()

			vs, err := r.CheckConsistency(cmd.Context(), ontoreason.CheckOptions{IncludeRecent: recent})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(vs) == 0 {
				fmt.Fprintln(out, "no violations found")
				return nil
			}
			for _, v := range vs {
				fmt.Fprintln(out, v.String())
			}
			if strict {
				return fmt.Errorf("%d violations", len(vs))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 0, "Include the N most recent journaled enrichments")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when violations are found")
	return cmd
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print ontology and base graph statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, r, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer r.Close()
			return writeJSON(cmd.OutOrStdout(), r.OntologyStats())
		},
	}
}

func exportCmd(a *app) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the base graph as Turtle or N-Triples",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := graph.ParseFormat(format)
			if err != nil {
				return err
			}
			_, logger, r, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer r.Close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			return r.Export(w, f)
		},
	}
	cmd.Flags().StringVar(&format, "format", "turtle", "Output format (turtle, ntriples)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}
