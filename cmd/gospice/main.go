package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ohmlab/gospice/pkg/analysis"
	"github.com/ohmlab/gospice/pkg/config"
	"github.com/ohmlab/gospice/pkg/netlist"
	"github.com/ohmlab/gospice/pkg/solver"
	"github.com/ohmlab/gospice/pkg/util"
)

var (
	configFile string
	backend    string
	guess      string
	noHomotopy bool
	showPath   bool
	plotFile   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gospice",
		Short: "DC operating-point circuit solver",
	}

	opCmd := &cobra.Command{
		Use:   "op [netlist]",
		Short: "solve the DC operating point of a netlist",
		Args:  cobra.ExactArgs(1),
		RunE:  runOperatingPoint,
	}
	opCmd.Flags().StringVar(&configFile, "config", "", "solver config file (yaml)")
	opCmd.Flags().StringVar(&backend, "backend", "", "linear solver backend (dense, sparse)")
	opCmd.Flags().StringVar(&guess, "guess", "", "initial guess strategy (zeros, linear, previous)")
	opCmd.Flags().BoolVar(&noHomotopy, "no-homotopy", false, "plain Newton-Raphson only")
	opCmd.Flags().BoolVar(&showPath, "ascii", false, "print the continuation path as an ascii graph")
	opCmd.Flags().StringVar(&plotFile, "plot", "", "write the continuation path plot to a file (png)")

	checkCmd := &cobra.Command{
		Use:   "check [netlist]",
		Short: "parse a netlist and list its elements",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	rootCmd.AddCommand(opCmd, checkCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadOptions(cmd *cobra.Command) (analysis.Options, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return analysis.Options{}, err
		}
		cfg = loaded
	}

	// CLI flags override the config file.
	if cmd.Flags().Changed("backend") {
		cfg.Backend = backend
	}
	if cmd.Flags().Changed("guess") {
		cfg.Guess = guess
	}

	opts, err := cfg.Options()
	if err != nil {
		return analysis.Options{}, err
	}
	if noHomotopy {
		opts.UseHomotopy = false
	}
	return opts, nil
}

func loadDeck(path string) (*netlist.Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return netlist.Parse(string(data))
}

func runOperatingPoint(cmd *cobra.Command, args []string) error {
	deck, err := loadDeck(args[0])
	if err != nil {
		return err
	}
	comps, err := deck.Components()
	if err != nil {
		return err
	}
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}

	res, err := analysis.NewDC(opts).Analyze(comps)
	if err != nil {
		return err
	}

	fmt.Printf("circuit: %s\n", deck.Title)
	if !res.Converged {
		fmt.Printf("did not converge: %s\n", res.FailureReason)
	} else {
		fmt.Printf("converged in %d iterations, residual %.3e\n", res.Iterations, res.FinalResidualNorm)
	}
	if res.ConditionEstimate > 0 {
		fmt.Printf("condition estimate: %.3e\n", res.ConditionEstimate)
	}
	fmt.Println()

	printResult(res)

	if showPath && len(res.Path) > 0 {
		printPathGraph(res.Path)
	}
	if plotFile != "" && len(res.Path) > 0 {
		if err := savePathPlot(res.Path, plotFile); err != nil {
			return err
		}
		fmt.Printf("continuation path written to %s\n", plotFile)
	}
	return nil
}

func printResult(res *analysis.DCResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "NODE\tVOLTAGE")
	for _, name := range sortedKeys(res.NodeVoltages) {
		fmt.Fprintf(w, "V(%s)\t%s\n", name, util.FormatValueFactor(res.NodeVoltages[name], "V"))
	}

	if len(res.BranchCurrents) > 0 {
		fmt.Fprintln(w, "\nBRANCH\tCURRENT")
		for _, name := range sortedKeys(res.BranchCurrents) {
			fmt.Fprintf(w, "I(%s)\t%s\n", name, util.FormatValueFactor(res.BranchCurrents[name], "A"))
		}
	}

	if len(res.Power) > 0 {
		fmt.Fprintln(w, "\nDEVICE\tPOWER")
		for _, name := range sortedKeys(res.Power) {
			fmt.Fprintf(w, "P(%s)\t%s\n", name, util.FormatValueFactor(res.Power[name], "W"))
		}
	}

	w.Flush()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printPathGraph(path []solver.PathPoint) {
	data := make([]float64, len(path))
	for i, p := range path {
		data[i] = p.Lambda
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(70),
		asciigraph.Caption("continuation parameter per accepted step"),
	))

	for i, p := range path {
		data[i] = p.ResidualNorm
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(70),
		asciigraph.Caption("corrector residual norm per accepted step"),
	))
}

func savePathPlot(path []solver.PathPoint, out string) error {
	p := plot.New()
	p.Title.Text = "homotopy continuation path"
	p.X.Label.Text = "lambda"
	p.Y.Label.Text = "corrector residual norm"

	pts := make(plotter.XYs, len(path))
	for i, pp := range path {
		pts[i].X = pp.Lambda
		pts[i].Y = pp.ResidualNorm
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(plotter.NewGrid(), line)

	return p.Save(6*vg.Inch, 4*vg.Inch, out)
}

func runCheck(cmd *cobra.Command, args []string) error {
	deck, err := loadDeck(args[0])
	if err != nil {
		return err
	}
	if _, err := deck.Components(); err != nil {
		return err
	}

	fmt.Printf("circuit: %s\n", deck.Title)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tNODES")
	for _, elem := range deck.Elements {
		fmt.Fprintf(w, "%s\t%s\t%v\n", elem.Name, elem.Type, elem.Nodes)
	}
	w.Flush()

	if len(deck.Models) > 0 {
		fmt.Println("\nmodels:")
		for _, name := range sortedModelNames(deck.Models) {
			fmt.Printf("  %s (%s)\n", name, deck.Models[name].Type)
		}
	}
	return nil
}

func sortedModelNames(m map[string]netlist.Model) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
