// Command bnquery validates network definitions and runs queries against them
// without starting the server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Harshitk-cp/wellspring/internal/bayes"
	"github.com/Harshitk-cp/wellspring/internal/buildconfig"
	"github.com/Harshitk-cp/wellspring/internal/netdef"
	"github.com/Harshitk-cp/wellspring/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	model     string
	heuristic string
	asJSON    bool
	evidence  []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "bnquery",
		Short:         "Query discrete Bayesian networks from the command line",
		Version:       buildconfig.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.model, "model", "", "network definition (.yaml/.yml/.json); empty uses the built-in borehole network")
	root.PersistentFlags().StringVar(&opts.heuristic, "heuristic", bayes.MinFill.String(), "elimination ordering: min-neighbors, min-weight or min-fill")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newValidateCmd(opts),
		newDumpCmd(opts),
		newQueryCmd(opts),
		newSensitivityCmd(opts),
		newScenarioCmd(opts),
	)
	return root
}

func addEvidenceFlag(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringArrayVarP(&opts.evidence, "evidence", "e", nil, "observation as Variable=state (index or label); repeatable")
}

func (o *options) models() (*service.ModelService, error) {
	h, err := bayes.ParseHeuristic(o.heuristic)
	if err != nil {
		return nil, err
	}
	return service.NewModelService(o.model, h, zap.NewNop())
}

func (o *options) inference() (*service.InferenceService, error) {
	models, err := o.models()
	if err != nil {
		return nil, err
	}
	return service.NewInferenceService(models, zap.NewNop()), nil
}

// parseEvidence turns Variable=state pairs into observations. States are
// matched against labels first; a numeric state with no matching label is an
// index.
func parseEvidence(pairs []string) (service.Observations, error) {
	obs := make(service.Observations, len(pairs))
	for _, pair := range pairs {
		name, state, ok := strings.Cut(pair, "=")
		name, state = strings.TrimSpace(name), strings.TrimSpace(state)
		if !ok || name == "" || state == "" {
			return nil, fmt.Errorf("invalid evidence %q: expected Variable=state", pair)
		}
		if _, dup := obs[name]; dup {
			return nil, fmt.Errorf("variable %s observed twice", name)
		}
		obs[name] = service.StateLabel(state)
	}
	return obs, nil
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Build the network and report its structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.inference()
			if err != nil {
				return err
			}
			info := svc.Model()
			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, info)
			}
			fmt.Fprintf(out, "%s: %d variables, %d edges, checksum %s\n", info.Name, info.TotalNodes, info.TotalEdges, info.Checksum)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIABLE\tSTATES\tPARENTS\tINTEREST")
			for _, v := range info.Variables {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, strings.Join(v.Labels, ", "), strings.Join(v.Parents, ", "), v.Interest)
			}
			return tw.Flush()
		},
	}
}

func newDumpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the validated network as a YAML definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := opts.models()
			if err != nil {
				return err
			}
			m := models.Current()
			def, err := netdef.FromNetwork(m.Name, m.Network)
			if err != nil {
				return err
			}
			def.Description = m.Description
			raw, err := netdef.Marshal(def)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}

func newQueryCmd(opts *options) *cobra.Command {
	var targets []string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Compute the posterior of one or more targets",
		Example: `  bnquery query -t Contamination -e Turbidity="Very Cloudy" -e Surface_Runoff=Yes
  bnquery query -t Pump_Age -t Pump_Failure --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := parseEvidence(opts.evidence)
			if err != nil {
				return err
			}
			svc, err := opts.inference()
			if err != nil {
				return err
			}
			res, err := svc.Query(cmd.Context(), service.QueryRequest{Targets: targets, Evidence: obs})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, res)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIABLE\tSTATE\tP")
			for _, name := range res.Targets {
				for _, label := range sortedKeys(res.Marginals[name]) {
					mark := ""
					if res.MostLikely[name] == label {
						mark = " *"
					}
					fmt.Fprintf(tw, "%s\t%s\t%.6f%s\n", name, label, res.Marginals[name][label], mark)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringArrayVarP(&targets, "target", "t", nil, "query target; repeatable")
	_ = cmd.MarkFlagRequired("target")
	addEvidenceFlag(cmd, opts)
	return cmd
}

func newSensitivityCmd(opts *options) *cobra.Command {
	var target, state string
	cmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "Rank observations by how far they move the target posterior",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := parseEvidence(opts.evidence)
			if err != nil {
				return err
			}
			svc, err := opts.inference()
			if err != nil {
				return err
			}
			req := service.SensitivityRequest{Target: target, Evidence: obs}
			if state != "" {
				ref := service.StateLabel(state)
				req.State = &ref
			}
			res, err := svc.Sensitivity(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "P(%s = %s | evidence) = %.6f\n", res.Target, res.State, res.Baseline)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tVARIABLE\tSCORE")
			for i, r := range res.Ranking {
				fmt.Fprintf(tw, "%d\t%s\t%.6f\n", i+1, r.Variable, r.Score)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "target variable")
	cmd.Flags().StringVar(&state, "state", "", "target state (index or label); defaults to the state of interest")
	_ = cmd.MarkFlagRequired("target")
	addEvidenceFlag(cmd, opts)
	return cmd
}

func newScenarioCmd(opts *options) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Estimate the states of every unobserved variable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := parseEvidence(opts.evidence)
			if err != nil {
				return err
			}
			svc, err := opts.inference()
			if err != nil {
				return err
			}
			res, err := svc.Scenario(cmd.Context(), service.ScenarioRequest{Evidence: obs, Mode: mode})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "mode %s, joint probability %.6f\n", res.Mode, res.Joint)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIABLE\tSTATE\tMARGINAL")
			for _, name := range sortedKeys(res.States) {
				marginal := "-"
				if p, ok := res.Marginals[name]; ok {
					marginal = fmt.Sprintf("%.6f", p)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, res.States[name], marginal)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(bayes.ModeIndependent), "independent (per-variable argmax) or joint (most probable explanation)")
	addEvidenceFlag(cmd, opts)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
