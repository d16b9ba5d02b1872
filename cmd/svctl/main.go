// Command svctl drives IEC 61850-9-2 sampled-value injection sessions:
// synthetic phasors, COMTRADE replay, SCD generation and post-run reports.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/report"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	switch cmd {
	case "phasor":
		runCmd(os.Args[2:], false)
	case "replay":
		runCmd(os.Args[2:], true)
	case "scd":
		scdCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "version":
		fmt.Printf("svctl %s (built %s)\n", version, buildDate)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Printf(`svctl %s (built %s) <command> [options]

Commands:
  phasor  --iface <name> [--session <session.yaml>] [--scd <file.scd> --scd-sv-id <id>] [options]
  replay  --iface <name> --cfg <rec.cfg> [--dat <rec.dat>] [--map ch=idx,...] [options]
  scd     --out <system.scd> [--sv-id <id>] [--mac <addr>] [--appid <hex>] [--smp-rate <n>]
  report  --json <session.json> --pdf <session.pdf> [--lang en|tr]

Common run options:
  --session <file>       YAML session file; flags override its values
  --pcap-out <file>      write frames to a pcap file instead of an interface
  --log-dir <dir>        rotate logs into <dir>/svctl.log
  --metrics-addr <addr>  serve Prometheus metrics on addr
  --report-json <file>   write the session report as JSON
  --report-pdf <file>    render the session report as PDF
`, version, buildDate)
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	jsonPath := fs.String("json", "", "session report JSON")
	pdfPath := fs.String("pdf", "", "output PDF path")
	langFlag := fs.String("lang", "en", "report language")
	fs.Parse(args)

	if *jsonPath == "" || *pdfPath == "" {
		fmt.Println("required: --json and --pdf")
		os.Exit(1)
	}
	lang, err := report.ParseLanguage(*langFlag)
	if err != nil {
		fmt.Println("language:", err)
		os.Exit(1)
	}
	rep, err := report.LoadSessionJSON(*jsonPath)
	if err != nil {
		fmt.Println("load report:", err)
		os.Exit(1)
	}
	if err := report.SaveSessionPDF(rep, lang, *pdfPath); err != nil {
		fmt.Println("render pdf:", err)
		os.Exit(1)
	}
	fmt.Printf("Report written to %s\n", *pdfPath)
}
