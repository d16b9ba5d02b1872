package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/common"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/goose"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/l2"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/report"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/scl"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/session"
)

func runCmd(args []string, replay bool) {
	name := "phasor"
	if replay {
		name = "replay"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	sessionFile := fs.String("session", "", "YAML session file")
	iface := fs.String("iface", "", "network interface")
	dstMAC := fs.String("dst", "", "destination MAC")
	srcMAC := fs.String("src", "", "source MAC (default: interface address)")
	vlanID := fs.Int("vlan", -1, "VLAN id")
	vlanPrio := fs.Int("prio", -1, "VLAN priority")
	appID := fs.String("appid", "", "APPID (hex)")
	svID := fs.String("sv-id", "", "svID string")
	rate := fs.Int("rate", 0, "sample rate in Hz")
	stopRef := fs.String("stop-goose-ref", "", "gocbRef substring that stops the run")
	gooseMon := fs.Bool("goose", false, "listen for GOOSE stop frames")
	verbose := fs.Bool("verbose", false, "log every decoded GOOSE frame")
	scdPath := fs.String("scd", "", "derive addressing from an SCD file")
	scdSVID := fs.String("scd-sv-id", "", "svID to select inside the SCD file")
	cfgFile := fs.String("cfg", "", "COMTRADE .cfg file")
	datFile := fs.String("dat", "", "COMTRADE .dat file (default: .cfg with extension swapped)")
	mapping := fs.String("map", "", "channel mapping name=idx[,name=idx...]")
	loop := fs.Bool("loop", false, "loop the recording")
	pcapOut := fs.String("pcap-out", "", "write frames to a pcap file instead of an interface")
	logDir := fs.String("log-dir", "", "rotate logs into this directory")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	reportJSON := fs.String("report-json", "", "write the session report as JSON")
	reportPDF := fs.String("report-pdf", "", "render the session report as PDF")
	reportLang := fs.String("lang", "en", "report language")
	fs.Parse(args)

	var cfg session.Config
	if *sessionFile != "" {
		if err := loadSessionFile(*sessionFile, &cfg); err != nil {
			common.Fatalf("session file: %v", err)
		}
	}
	if *scdPath != "" {
		if err := applySCD(&cfg, *scdPath, *scdSVID); err != nil {
			common.Fatalf("scd: %v", err)
		}
	}

	if *iface != "" {
		cfg.Iface = *iface
	}
	if *dstMAC != "" {
		cfg.DstMAC = *dstMAC
	}
	if *srcMAC != "" {
		cfg.SrcMAC = *srcMAC
	}
	if *vlanID >= 0 {
		cfg.VLANID = uint16(*vlanID)
	}
	if *vlanPrio >= 0 {
		cfg.VLANPriority = uint8(*vlanPrio)
	}
	if *appID != "" {
		id, err := parseHexID(*appID)
		if err != nil {
			common.Fatalf("appid: %v", err)
		}
		cfg.AppID = id
	}
	if *svID != "" {
		cfg.SVID = *svID
	}
	if *rate > 0 {
		cfg.SampleRate = uint16(*rate)
	}
	if *stopRef != "" {
		cfg.StopGooseRef = *stopRef
		cfg.EnableGooseMonitoring = true
	}
	if *gooseMon {
		cfg.EnableGooseMonitoring = true
	}
	if *verbose {
		cfg.VerboseOutput = true
	}
	if replay {
		if *cfgFile != "" {
			cfg.CfgFilePath = *cfgFile
		}
		if *datFile != "" {
			cfg.DatFilePath = *datFile
		}
		if *mapping != "" {
			m, err := parseMapping(*mapping)
			if err != nil {
				common.Fatalf("map: %v", err)
			}
			cfg.ChannelMapping = m
		}
		if *loop {
			cfg.LoopPlayback = true
		}
		if cfg.CfgFilePath == "" {
			fmt.Println("required: --cfg")
			os.Exit(1)
		}
	} else {
		cfg.CfgFilePath = ""
		cfg.DatFilePath = ""
	}
	if cfg.Iface == "" && *pcapOut == "" {
		fmt.Println("required: --iface (or --pcap-out)")
		os.Exit(1)
	}
	if *pcapOut != "" && cfg.Iface == "" {
		cfg.Iface = "pcap-out"
	}

	if *logDir != "" {
		if err := setupLogging(*logDir); err != nil {
			common.Fatalf("setup logging: %v", err)
		}
	}

	ctl := session.NewController()
	if *pcapOut != "" {
		ctl.SetTransport(func(string) (l2.Handle, error) {
			src, _ := eth.ParseMAC(cfg.SrcMAC)
			return l2.NewRecorder(*pcapOut, src)
		})
	}
	if cfg.VerboseOutput {
		ctl.SetGooseCallback(func(msg goose.Message) {
			common.Logf("goose: gocbRef=%s stNum=%d sqNum=%d ttl=%dms",
				msg.GocbRef, msg.StNum, msg.SqNum, msg.TimeAllowedToLive)
		})
	}

	if err := ctl.Configure(cfg); err != nil {
		common.Fatalf("configure: %v", err)
	}
	ctlCfg := ctl.Config()
	common.Logf("session %s: mode=%s iface=%s svID=%s rate=%d Hz",
		ctl.ID(), ctlCfg.Mode(), ctlCfg.Iface, ctlCfg.SVID, ctlCfg.SampleRate)

	stopMetrics := func() {}
	if *metricsAddr != "" {
		stopMetrics = serveMetrics(*metricsAddr, ctl)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		common.Logf("received %v, stopping", sig)
		ctl.Stop()
	}()

	stopProgress := common.StartProgressPrinter(os.Stdout, ctl.Metrics(), time.Second)
	err := ctl.Run()
	stopProgress()
	stopMetrics()
	signal.Stop(sigCh)
	if err != nil {
		common.Fatalf("run: %v", err)
	}

	stats := ctl.Statistics()
	common.Logf("done: sent=%d failed=%d duration=%.3fs",
		stats.PacketsSent, stats.PacketsFailed, ctl.Metrics().Snapshot().Duration.Seconds())
	if stats.StoppedByGoose {
		common.Logf("stopped by GOOSE: %s", stats.GooseStopReason)
	}

	if *reportJSON != "" || *reportPDF != "" {
		rep, err := report.FromSession(ctl)
		if err != nil {
			common.Fatalf("report: %v", err)
		}
		if *reportJSON != "" {
			if err := report.SaveSessionJSON(rep, *reportJSON); err != nil {
				common.Fatalf("report json: %v", err)
			}
		}
		if *reportPDF != "" {
			lang, err := report.ParseLanguage(*reportLang)
			if err != nil {
				common.Fatalf("report language: %v", err)
			}
			if err := report.SaveSessionPDF(rep, lang, *reportPDF); err != nil {
				common.Fatalf("report pdf: %v", err)
			}
		}
	}
}

func loadSessionFile(path string, cfg *session.Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	baseDir := filepath.Dir(path)
	resolve := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		candidate := filepath.Clean(filepath.Join(baseDir, p))
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		return p
	}
	cfg.CfgFilePath = resolve(cfg.CfgFilePath)
	cfg.DatFilePath = resolve(cfg.DatFilePath)
	return nil
}

// applySCD copies the selected publisher's addressing into the session.
func applySCD(cfg *session.Config, path, svID string) error {
	pubs, err := scl.ParseFile(path)
	if err != nil {
		return err
	}
	var pub *scl.Publisher
	if svID != "" {
		p, ok := scl.FindBySVID(pubs, svID)
		if !ok {
			return fmt.Errorf("svID %q not found in %s", svID, path)
		}
		pub = p
	} else {
		pub = &pubs[0]
	}
	if !pub.MAC.IsZero() {
		cfg.DstMAC = pub.MAC.String()
	}
	if pub.AppID != 0 {
		cfg.AppID = pub.AppID
	}
	cfg.VLANID = pub.VLANID
	cfg.VLANPriority = pub.VLANPriority
	if pub.SVID != "" {
		cfg.SVID = pub.SVID
	}
	return nil
}

func setupLogging(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "svctl.log"),
		MaxSize:    25,
		MaxAge:     7,
		MaxBackups: 5,
	}
	common.SetLogOutput(io.MultiWriter(os.Stderr, rotator))
	return nil
}

func parseHexID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// parseMapping parses "IA=0,IB=1" into the recording channel map.
func parseMapping(s string) (map[string]int, error) {
	out := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, idxStr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not name=index", part)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
		if err != nil {
			return nil, fmt.Errorf("entry %q: %v", part, err)
		}
		out[strings.TrimSpace(name)] = idx
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty mapping")
	}
	return out, nil
}
