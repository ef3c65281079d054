package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasmpack/engine"
	"github.com/wippyai/wasmpack/synth"
	"github.com/wippyai/wasmpack/wasm"
)

var (
	callName string
	callArgs []string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.wasm>",
	Short: "Show a binary's imports and exports and the loader generated for it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		path := args[0]
		data, err := engine.ReadBytes(path)
		if err != nil {
			return err
		}

		s, err := synth.New(synth.Options{})
		if err != nil {
			return err
		}
		lm, err := s.Synthesize(path, data)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		printInterface(w, lm)

		eng, err := engine.New(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(ctx)
		if err := eng.Verify(ctx, data); err != nil {
			return err
		}
		fmt.Fprintln(w, "\nverified: compiles with the native engine")

		if callName == "" {
			return nil
		}
		return call(ctx, w, eng, lm.Interface, data)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&callName, "call", "", "Instantiate the binary and call this export")
	inspectCmd.Flags().StringSliceVar(&callArgs, "args", nil, "Integer arguments for --call")
}

func printInterface(w io.Writer, lm *synth.LoaderModule) {
	fmt.Fprintf(w, "%s  sha256:%s\n", lm.ID, lm.Hash[:16])
	fmt.Fprintf(w, "\nimports (%d):\n", len(lm.Interface.Imports))
	for _, imp := range lm.Interface.Imports {
		sig := ""
		if imp.Func != nil {
			sig = " " + imp.Func.String()
		}
		fmt.Fprintf(w, "  %s %q.%q%s\n", wasm.KindName(imp.Kind), imp.Module, imp.Name, sig)
	}
	fmt.Fprintf(w, "\nexports (%d):\n", len(lm.Interface.Exports))
	for _, exp := range lm.Interface.Exports {
		sig := ""
		if exp.Func != nil {
			sig = " " + exp.Func.String()
		}
		fmt.Fprintf(w, "  %s %q%s\n", wasm.KindName(exp.Kind), exp.Name, sig)
	}
	if lm.AssetName != "" {
		fmt.Fprintf(w, "\nasset: %s\n", lm.AssetName)
	}
}

// call instantiates data with stub imports that log their arguments and
// return zeros, then calls callName.
func call(ctx context.Context, w io.Writer, eng *engine.Engine, iface *wasm.Interface, data []byte) error {
	imports := engine.ImportObject{}
	for _, imp := range iface.Imports {
		if imp.Func == nil {
			continue
		}
		mod, name, nResults := imp.Module, imp.Name, len(imp.Func.Results)
		if imports[mod] == nil {
			imports[mod] = map[string]engine.HostFunc{}
		}
		imports[mod][name] = func(_ context.Context, params []uint64) ([]uint64, error) {
			fmt.Fprintf(w, "  host %s.%s%v\n", mod, name, params)
			return make([]uint64, nResults), nil
		}
	}

	inst, err := eng.Instantiate(ctx, data, imports)
	if err != nil {
		return err
	}
	defer inst.Close(ctx)

	params := make([]uint64, len(callArgs))
	for i, a := range callArgs {
		v, err := strconv.ParseInt(a, 0, 64)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		params[i] = uint64(v)
	}
	results, err := inst.Call(ctx, callName, params...)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s%v = %v\n", callName, params, results)
	printState(w, inst, iface)
	return nil
}

// printState shows exported globals and memory after the call.
func printState(w io.Writer, inst *engine.Instance, iface *wasm.Interface) {
	for _, exp := range iface.Exports {
		if exp.Kind != wasm.KindGlobal {
			continue
		}
		if v, ok := inst.Global(exp.Name); ok {
			fmt.Fprintf(w, "  global %s = %d\n", exp.Name, v)
		}
	}
	if size := inst.MemorySize(); size > 0 {
		fmt.Fprintf(w, "  memory %d bytes\n", size)
	}
}
