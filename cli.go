package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"vmdbg/hv"
	"vmdbg/hv/log"
)

type mode byte

const (
	setFlagsMode  mode = iota // Replace the debug condition mask
	getFlagsMode              // Read the debug condition mask
	vtlbMode                  // Dump the translation cache
	translateMode             // Translate one guest virtual address
	versionMode               // Show vmdbg version
)

type (
	CLI struct {
		SetFlags  SetFlags  `cmd:"" help:"Replace the vcpu debug condition mask." name:"set-flags"`
		GetFlags  GetFlags  `cmd:"" help:"Print the vcpu debug condition mask." name:"get-flags"`
		VTLB      VTLB      `cmd:"" help:"Dump the vcpu translation cache."`
		Translate Translate `cmd:"" help:"Translate a guest virtual address."`
		Version   Version   `cmd:"" help:"Show vmdbg version."`

		Port int        `help:"Monitor control port." default:"0"`
		Vcpu uint       `help:"Target vcpu." default:"0"`
		Log  logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	SetFlags struct {
		Flags string `arg:"" name:"flags" help:"${flags_help}"`
	}

	GetFlags struct{}

	VTLB struct {
		Capacity int  `help:"Max entries to fetch, 0 asks for the count only." default:"128"`
		JSON     bool `help:"Emit entries as JSON."`
	}

	Translate struct {
		Vaddr string `arg:"" name:"vaddr" help:"Guest virtual address (hex)."`
		JSON  bool   `help:"Emit the result as JSON."`
	}

	Version struct{}
)

var vars = kong.Vars{
	"flags_help": "Comma-separated condition names, or a numeric mask. See 'Debug conditions' below.",
	"log_help":   "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("vmdbg"),
		kong.Description("Guest vcpu debug control plane."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "set-flags <flags>":
		cfg.mode = setFlagsMode
	case "get-flags":
		cfg.mode = getFlagsMode
	case "vtlb":
		cfg.mode = vtlbMode
	case "translate <vaddr>":
		cfg.mode = translateMode
	case "version":
		cfg.mode = versionMode
	default:
		fatalf("unknown command %q", ctx.Command())
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if strings.HasPrefix(ctx.Command(), "set-flags") {
		conditionsHelp := `
Debug conditions:
  The flags argument accepts a comma-separated list of condition names,
  'none', or a numeric mask (e.g. 0x1ffff).

  Valid condition names are:
%s
`
		var strs []string
		for _, name := range hv.FlagNames() {
			strs = append(strs, "    - "+name)
		}
		fmt.Fprintf(os.Stderr, conditionsHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}
