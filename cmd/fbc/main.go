// Command fbc is the FasterBASIC ahead-of-time compiler driver: lex, parse,
// analyze, build the CFG, emit QBE IL, and (spec.md §4.6) hand QBE's target
// assembly through the MADD/FMADD fusion peephole before invoking the
// system toolchain. Flags mirror spec.md §5's pipeline stages so any one
// of them can be inspected in isolation.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fasterbasic/fbc/internal/backend"
	"github.com/fasterbasic/fbc/internal/cfgir"
	"github.com/fasterbasic/fbc/internal/codegen"
	"github.com/fasterbasic/fbc/internal/diag"
	"github.com/fasterbasic/fbc/internal/parser"
	"github.com/fasterbasic/fbc/internal/sema"
)

var (
	flagOutput     string
	flagEmitAST    bool
	flagEmitCFG    bool
	flagEmitCFGDot bool
	flagEmitQBE    bool
	flagEmitAsm    bool
	flagRun        bool
	flagQBEPath    string
)

func main() {
	root := &cobra.Command{
		Use:           "fbc <file.bas>",
		Short:         "FasterBASIC ahead-of-time compiler",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCompile,
	}
	root.Flags().StringVarP(&flagOutput, "output", "o", "a.out", "output binary path")
	root.Flags().BoolVar(&flagEmitAST, "ast", false, "print the parsed AST and exit")
	root.Flags().BoolVar(&flagEmitCFG, "cfg", false, "print the built CFG and exit")
	root.Flags().BoolVar(&flagEmitCFGDot, "emit-cfg-dot", false, "print the CFG as Graphviz dot and exit")
	root.Flags().BoolVar(&flagEmitQBE, "emit-qbe", false, "print generated QBE IL and exit")
	root.Flags().BoolVar(&flagEmitAsm, "emit-asm", false, "print fused ARM64 assembly and exit")
	root.Flags().BoolVar(&flagRun, "run", false, "compile then execute the result")
	root.Flags().StringVar(&flagQBEPath, "qbe", "qbe", "path to the qbe binary")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fbc:", err)
		os.Exit(1)
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	srcPath := args[0]
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return errors.Wrapf(err, "reading %s", srcPath)
	}

	sink := diag.NewSink()
	p := parser.New(srcPath, src, sink)
	prog := p.Parse()
	if sink.HasErrors() {
		return reportAndFail(sink, "parse")
	}
	if flagEmitAST {
		fmt.Printf("%#v\n", prog)
		return nil
	}

	ctx := sema.NewContext()
	ctx.Diags = sink
	res := sema.New(ctx).Analyze(prog)
	if sink.HasErrors() {
		return reportAndFail(sink, "semantic analysis")
	}

	pcfg := cfgir.Build(prog)
	if flagEmitCFG {
		printCFG(pcfg)
		return nil
	}
	if flagEmitCFGDot {
		fmt.Print(cfgDot(pcfg))
		return nil
	}

	il := codegen.Generate(prog, res, pcfg)
	if flagEmitQBE {
		fmt.Print(il)
		return nil
	}

	asmPath, err := compileToAssembly(il, srcPath)
	if err != nil {
		return err
	}
	defer os.Remove(asmPath)

	fusedPath, err := fuseAssembly(asmPath)
	if err != nil {
		return err
	}
	defer os.Remove(fusedPath)

	if flagEmitAsm {
		text, err := os.ReadFile(fusedPath)
		if err != nil {
			return err
		}
		fmt.Print(string(text))
		return nil
	}

	if err := assembleAndLink(fusedPath, flagOutput); err != nil {
		return err
	}

	if flagRun {
		run := exec.Command(flagOutput)
		run.Stdout = os.Stdout
		run.Stderr = os.Stderr
		run.Stdin = os.Stdin
		return run.Run()
	}
	return nil
}

func reportAndFail(sink *diag.Sink, stage string) error {
	for _, s := range sink.Strings() {
		fmt.Fprintln(os.Stderr, s)
	}
	return errors.Errorf("%s failed with %d error(s)", stage, len(sink.Strings()))
}

// compileToAssembly shells out to qbe (spec.md §4.6: "QBE performs SSA
// construction, optimization, and register allocation") to lower the IL
// this driver generated into target ARM64 assembly.
func compileToAssembly(il string, srcPath string) (string, error) {
	ilPath := srcPath + ".qbe.il"
	if err := os.WriteFile(ilPath, []byte(il), 0o644); err != nil {
		return "", err
	}
	defer os.Remove(ilPath)

	asmPath := srcPath + ".s"
	out, err := exec.Command(flagQBEPath, "-t", "arm64", "-o", asmPath, ilPath).CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "qbe: %s", strings.TrimSpace(string(out)))
	}
	return asmPath, nil
}

// fuseAssembly applies the MADD/FMADD peephole (spec.md §4.6) over qbe's
// textual output and writes the result to a sibling file.
func fuseAssembly(asmPath string) (string, error) {
	text, err := os.ReadFile(asmPath)
	if err != nil {
		return "", err
	}
	fused := backend.FuseAssemblyText(string(text))
	outPath := strings.TrimSuffix(asmPath, ".s") + ".fused.s"
	if err := os.WriteFile(outPath, []byte(fused), 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}

func assembleAndLink(asmPath, output string) error {
	cc := "cc"
	if p, ok := os.LookupEnv("FBC_CC"); ok && p != "" {
		cc = p
	}
	out, err := exec.Command(cc, "-o", output, asmPath).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "link: %s", strings.TrimSpace(string(out)))
	}
	abs, _ := filepath.Abs(output)
	fmt.Fprintln(os.Stderr, "fbc: wrote", abs)
	return nil
}

func printCFG(pcfg *cfgir.ProgramCFG) {
	dump := func(fn *cfgir.FunctionCFG) {
		name := fn.Name
		if name == "" {
			name = "main"
		}
		fmt.Printf("function %s:\n", name)
		for _, b := range fn.Blocks {
			fmt.Printf("  block %d (%s): %d stmt(s)\n", b.ID, b.Label, len(b.Statements))
			for _, e := range b.OutEdges {
				fmt.Printf("    -> %d [%v]\n", e.Target, e.Kind)
			}
		}
	}
	dump(pcfg.Main)
	for _, fn := range pcfg.FunctionCFGs {
		dump(fn)
	}
}

// cfgDot renders the whole-program CFG as Graphviz dot, one subgraph per
// function — the SPEC_FULL.md supplemental debug view for visually
// inspecting the CFG builder's output.
func cfgDot(pcfg *cfgir.ProgramCFG) string {
	var b strings.Builder
	b.WriteString("digraph fbc {\n")
	render := func(fn *cfgir.FunctionCFG) {
		name := fn.Name
		if name == "" {
			name = "main"
		}
		fmt.Fprintf(&b, "  subgraph cluster_%s {\n    label=%q;\n", name, name)
		for _, blk := range fn.Blocks {
			fmt.Fprintf(&b, "    %s_%d [label=%q];\n", name, blk.ID, blk.Label)
		}
		for _, blk := range fn.Blocks {
			for _, e := range blk.OutEdges {
				fmt.Fprintf(&b, "    %s_%d -> %s_%d;\n", name, blk.ID, name, e.Target)
			}
		}
		b.WriteString("  }\n")
	}
	render(pcfg.Main)
	for _, fn := range pcfg.FunctionCFGs {
		render(fn)
	}
	b.WriteString("}\n")
	return b.String()
}
